package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jerkytreats/handyman/internal/configuration"
	"github.com/jerkytreats/handyman/internal/healthcheck"
)

type handlerObservation struct {
	trigger healthcheck.State
	status  Status
}

type fakeRecorder struct {
	mu  sync.Mutex
	obs []handlerObservation
}

func (r *fakeRecorder) RecordHandler(_ context.Context, trigger healthcheck.State, status Status, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, handlerObservation{trigger, status})
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name    string
		trigger healthcheck.State
		outcome healthcheck.Outcome
		want    bool
	}{
		{"failed trigger on failure", healthcheck.Failed, healthcheck.Outcome{AnyFailed: true}, true},
		{"failed trigger on success", healthcheck.Failed, healthcheck.Outcome{AnySucceeded: true}, false},
		{"ok trigger on success", healthcheck.Ok, healthcheck.Outcome{AnySucceeded: true}, true},
		{"ok trigger on failure", healthcheck.Ok, healthcheck.Outcome{AnyFailed: true}, false},
		{"ok trigger on mixed", healthcheck.Ok, healthcheck.Outcome{AnyFailed: true, AnySucceeded: true}, true},
		{"failed trigger on mixed", healthcheck.Failed, healthcheck.Outcome{AnyFailed: true, AnySucceeded: true}, true},
		{"empty group", healthcheck.Ok, healthcheck.Outcome{}, false},
		{"invalid trigger", healthcheck.State("maybe"), healthcheck.Outcome{AnyFailed: true, AnySucceeded: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.trigger, tt.outcome))
		})
	}
}

func TestDispatchRunsMatchingHandlersInOrder(t *testing.T) {
	out := filepath.Join(t.TempDir(), "order.log")
	handlers := []configuration.Handler{
		{Name: "first", Command: "echo first >> " + out, State: healthcheck.Ok},
		{Name: "skipped", Command: "echo skipped >> " + out, State: healthcheck.Failed},
		{Name: "second", Command: "echo second >> " + out, State: healthcheck.Ok},
	}

	results := New().Dispatch(context.Background(), "test", healthcheck.Outcome{AnySucceeded: true}, handlers)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Handler)
	assert.Equal(t, "second", results[1].Handler)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(data))
}

func TestDispatchBothTriggersOnMixedOutcome(t *testing.T) {
	handlers := []configuration.Handler{
		{Name: "on-ok", Command: "true", State: healthcheck.Ok},
		{Name: "on-failed", Command: "true", State: healthcheck.Failed},
	}

	results := New().Dispatch(context.Background(), "test", healthcheck.Outcome{AnyFailed: true, AnySucceeded: true}, handlers)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, Succeeded, r.Status)
	}
}

func TestDispatchNothingForEmptyOutcome(t *testing.T) {
	handlers := []configuration.Handler{{Command: "true", State: healthcheck.Ok}, {Command: "true", State: healthcheck.Failed}}
	assert.Empty(t, New().Dispatch(context.Background(), "test", healthcheck.Outcome{}, handlers))
}

func TestRunCommandFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rec := &fakeRecorder{}
	d := New(WithLogger(zap.New(core)), WithRecorder(rec))

	res := d.Run(context.Background(), "test", configuration.Handler{Name: "broken", Command: "exit 3", State: healthcheck.Failed})
	assert.Equal(t, CommandFailed, res.Status)
	assert.Equal(t, 3, res.ExitCode)
	assert.Error(t, res.Err)

	failed := logs.FilterMessage("command failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
	assert.Equal(t, int64(3), failed[0].ContextMap()["exit_code"])
	assert.Equal(t, "broken", failed[0].ContextMap()["handler"])

	assert.Equal(t, []handlerObservation{{healthcheck.Failed, CommandFailed}}, rec.obs)
}

func TestRunLaunchFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	d := New(WithShell("/nonexistent/handyman-shell"), WithLogger(zap.New(core)))

	res := d.Run(context.Background(), "test", configuration.Handler{Command: "true", State: healthcheck.Ok})
	assert.Equal(t, LaunchFailed, res.Status)
	assert.Equal(t, -1, res.ExitCode)
	assert.Equal(t, 1, logs.FilterMessage("failed to run command").Len())
}

func TestRunOutputOnlyAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	d := New(WithLogger(zap.New(core)))

	res := d.Run(context.Background(), "test", configuration.Handler{Command: "echo visible-only-at-debug", State: healthcheck.Ok})
	assert.Equal(t, Succeeded, res.Status)
	for _, e := range logs.All() {
		assert.NotContains(t, e.ContextMap(), "stdout")
	}
}

func TestRunNotCancelledByContext(t *testing.T) {
	out := filepath.Join(t.TempDir(), "done")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New().Run(ctx, "test", configuration.Handler{Command: "sleep 0.2 && touch " + out, State: healthcheck.Ok})
	assert.Equal(t, Succeeded, res.Status)
	assert.FileExists(t, out)
}

func TestRunEmitsSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	New(WithTracer(tp.Tracer("test"))).Run(context.Background(), "test", configuration.Handler{Command: "exit 1", State: healthcheck.Failed})

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "handler.run", spans[0].Name())
}

func TestWithShell(t *testing.T) {
	assert.Equal(t, DefaultShell, New().Shell())
	assert.Equal(t, "bash", New(WithShell("bash")).Shell())
	assert.Equal(t, DefaultShell, New(WithShell("")).Shell())
}
