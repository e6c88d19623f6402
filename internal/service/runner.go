// Package service runs loaded configurations: one polling loop per
// configuration, all started together by the Orchestrator.
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/jerkytreats/handyman/internal/configuration"
	"github.com/jerkytreats/handyman/internal/dispatch"
	"github.com/jerkytreats/handyman/internal/healthcheck"
)

type deps struct {
	logger     *zap.Logger
	tracer     trace.Tracer
	recorder   healthcheck.Recorder
	dispatcher *dispatch.Dispatcher
	onLost     func(*configuration.Configuration)
	// unit scales configured intervals; tests shorten it.
	unit time.Duration
}

// Option injects a collaborator into a Runner or Orchestrator.
type Option func(*deps)

func WithLogger(logger *zap.Logger) Option {
	return func(d *deps) { d.logger = logger }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(d *deps) { d.tracer = tracer }
}

// WithRecorder sets the sink for per-probe observations.
func WithRecorder(recorder healthcheck.Recorder) Option {
	return func(d *deps) { d.recorder = recorder }
}

func WithDispatcher(dispatcher *dispatch.Dispatcher) Option {
	return func(d *deps) { d.dispatcher = dispatcher }
}

// WithRunnerLost registers fn to be told about a configuration whose runner
// panicked. Only the Orchestrator calls it.
func WithRunnerLost(fn func(*configuration.Configuration)) Option {
	return func(d *deps) { d.onLost = fn }
}

func newDeps(opts []Option) deps {
	d := deps{unit: time.Second}
	for _, opt := range opts {
		opt(&d)
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	if d.tracer == nil {
		d.tracer = noop.NewTracerProvider().Tracer("")
	}
	if d.dispatcher == nil {
		d.dispatcher = dispatch.New(dispatch.WithLogger(d.logger), dispatch.WithTracer(d.tracer))
	}
	return d
}

// Runner owns one configuration's loop: wait for the interval, evaluate every
// probe group, dispatch handlers, repeat.
type Runner struct {
	cfg *configuration.Configuration
	deps
}

// NewRunner returns a runner for cfg.
func NewRunner(cfg *configuration.Configuration, opts ...Option) *Runner {
	return &Runner{cfg: cfg, deps: newDeps(opts)}
}

func (r *Runner) scope() healthcheck.Scope {
	return healthcheck.Scope{
		Config:   r.cfg.DisplayName(),
		Logger:   r.logger,
		Tracer:   r.tracer,
		Recorder: r.recorder,
	}
}

// Run loops until ctx is cancelled, then returns nil. A configuration without
// an interval is evaluated again immediately after each pass.
func (r *Runner) Run(ctx context.Context) error {
	name := r.cfg.DisplayName()
	logger := r.logger.With(zap.String("config", name))

	wait, hasWait := r.cfg.Wait(r.unit)

	logger.Info("launching health check",
		zap.Int("groups", len(r.cfg.Groups)),
		zap.Int("handlers", len(r.cfg.Handlers)),
		zap.Duration("interval", wait))
	if !hasWait {
		logger.Warn("no interval configured, health checks will run back to back")
	}

	for {
		if hasWait {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				logger.Info("health check stopped")
				return nil
			case <-timer.C:
			}
		}
		if ctx.Err() != nil {
			logger.Info("health check stopped")
			return nil
		}
		r.Iterate(ctx)
	}
}

// Iterate runs one pass over the probe groups. Each group is aggregated on
// its own and dispatches handlers before the next group starts. A group cut
// short by cancellation does not dispatch.
func (r *Runner) Iterate(ctx context.Context) []dispatch.Result {
	scope := r.scope()
	var results []dispatch.Result

	for _, g := range r.cfg.Groups {
		if g.Len() == 0 {
			continue
		}
		r.logger.Info("running health checks",
			zap.String("kind", g.Kind()),
			zap.Int("count", g.Len()),
			zap.String("config", scope.Config))

		states := g.Evaluate(ctx, scope)
		if ctx.Err() != nil {
			return results
		}

		outcome := healthcheck.Aggregate(states)
		results = append(results, r.dispatcher.Dispatch(ctx, scope.Config, outcome, r.cfg.Handlers)...)
	}
	return results
}
