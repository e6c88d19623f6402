package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jerkytreats/handyman/internal/configuration"
)

// ErrRunnerLost is reported by Orchestrator.Run when a runner panicked.
var ErrRunnerLost = errors.New("health check runner lost")

// Orchestrator starts one Runner per configuration.
type Orchestrator struct {
	opts []Option
	deps
}

// NewOrchestrator returns an orchestrator; opts are handed to every runner.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{deps: newDeps(opts)}
	// Runners share the resolved collaborators
	o.opts = []Option{
		WithLogger(o.logger),
		WithTracer(o.tracer),
		WithRecorder(o.recorder),
		WithDispatcher(o.dispatcher),
		func(d *deps) { d.unit = o.unit },
	}
	return o
}

// Run starts every configuration concurrently and blocks until all runners
// return. Runners do not share cancellation: one that fails or panics is not
// restarted and does not stop the others. Lost runners are reported once all
// have returned.
func (o *Orchestrator) Run(ctx context.Context, configs []*configuration.Configuration) error {
	var g errgroup.Group
	for _, cfg := range configs {
		runner := NewRunner(cfg, o.opts...)
		name := cfg.DisplayName()

		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("health check runner lost",
						zap.String("config", name),
						zap.Any("panic", r))
					if o.onLost != nil {
						o.onLost(cfg)
					}
					err = fmt.Errorf("%w: %s: %v", ErrRunnerLost, name, r)
				}
			}()
			return runner.Run(ctx)
		})
	}
	return g.Wait()
}
