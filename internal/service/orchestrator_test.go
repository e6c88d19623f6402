package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jerkytreats/handyman/internal/configuration"
	"github.com/jerkytreats/handyman/internal/healthcheck"
)

// panicGroup simulates a runner fault outside any probe.
type panicGroup struct{}

func (panicGroup) Kind() string                { return "panic" }
func (panicGroup) Len() int                    { return 1 }
func (panicGroup) Probes() []healthcheck.Probe { return nil }

func (panicGroup) Evaluate(context.Context, healthcheck.Scope) []healthcheck.State {
	panic("runner fault")
}

func shortOrchestrator(opts ...Option) *Orchestrator {
	o := NewOrchestrator(opts...)
	o.unit = 10 * time.Millisecond
	return o
}

func TestOrchestratorRunsConfigurationsIndependently(t *testing.T) {
	fast := &atomic.Int64{}
	slow := &atomic.Int64{}
	configs := []*configuration.Configuration{
		{
			Name:     "fast",
			Interval: intPtr(1),
			Handlers: []configuration.Handler{{Command: "exit 1", State: healthcheck.Failed}},
			Groups:   []healthcheck.Group{stubGroup(&countingProbe{state: healthcheck.Failed, calls: fast})},
		},
		{
			Name:     "slow",
			Interval: intPtr(5),
			Handlers: []configuration.Handler{{Command: "true", State: healthcheck.Ok}},
			Groups:   []healthcheck.Group{stubGroup(&countingProbe{state: healthcheck.Ok, calls: slow})},
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- shortOrchestrator().Run(ctx, configs) }()

	require.Eventually(t, func() bool { return fast.Load() >= 6 && slow.Load() >= 2 }, 10*time.Second, 5*time.Millisecond)
	assert.Greater(t, fast.Load(), slow.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not return after cancellation")
	}
}

func TestOrchestratorIsolatesPanickingRunner(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	healthy := &atomic.Int64{}
	configs := []*configuration.Configuration{
		{Name: "doomed", Interval: intPtr(1), Groups: []healthcheck.Group{panicGroup{}}},
		{Name: "healthy", Interval: intPtr(1), Groups: []healthcheck.Group{stubGroup(&countingProbe{state: healthcheck.Ok, calls: healthy})}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- shortOrchestrator(WithLogger(zap.New(core))).Run(ctx, configs) }()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("health check runner lost").Len() == 1 && healthy.Load() >= 3
	}, 5*time.Second, 5*time.Millisecond)

	// The healthy runner keeps its cadence after the loss
	before := healthy.Load()
	require.Eventually(t, func() bool { return healthy.Load() > before }, 5*time.Second, 5*time.Millisecond)

	cancel()
	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunnerLost)
	assert.Contains(t, err.Error(), "doomed")
}

func TestOrchestratorReportsLostConfiguration(t *testing.T) {
	doomed := &configuration.Configuration{Name: "doomed", Interval: intPtr(1), Groups: []healthcheck.Group{panicGroup{}}}
	healthy := &configuration.Configuration{Name: "healthy", Interval: intPtr(1)}

	var mu sync.Mutex
	var lost []*configuration.Configuration
	onLost := func(cfg *configuration.Configuration) {
		mu.Lock()
		defer mu.Unlock()
		lost = append(lost, cfg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := shortOrchestrator(WithRunnerLost(onLost)).Run(ctx, []*configuration.Configuration{doomed, healthy})
	assert.ErrorIs(t, err, ErrRunnerLost)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, lost, 1)
	assert.Same(t, doomed, lost[0])
}

func TestOrchestratorWithNoConfigurations(t *testing.T) {
	assert.NoError(t, NewOrchestrator().Run(context.Background(), nil))
}
