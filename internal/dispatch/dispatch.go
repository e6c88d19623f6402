// Package dispatch decides which handlers fire for an aggregate outcome and
// runs them through a shell.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/jerkytreats/handyman/internal/configuration"
	"github.com/jerkytreats/handyman/internal/healthcheck"
)

// DefaultShell interprets handler commands unless overridden.
const DefaultShell = "sh"

// Status describes how a handler run ended.
type Status string

const (
	// Succeeded means the command exited 0.
	Succeeded Status = "succeeded"
	// CommandFailed means the command ran and exited non-zero.
	CommandFailed Status = "command_failed"
	// LaunchFailed means the shell could not be started.
	LaunchFailed Status = "launch_failed"
)

// Result is the record of one handler run.
type Result struct {
	Handler  string
	Trigger  healthcheck.State
	Status   Status
	ExitCode int
	Duration time.Duration
	Err      error
}

// Recorder receives one observation per handler run.
type Recorder interface {
	RecordHandler(ctx context.Context, trigger healthcheck.State, status Status, d time.Duration)
}

// Dispatcher runs handlers. It is safe for concurrent use by several runners.
type Dispatcher struct {
	shell    string
	logger   *zap.Logger
	tracer   trace.Tracer
	recorder Recorder
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithShell sets the interpreter used as "<shell> -c <command>".
func WithShell(shell string) Option {
	return func(d *Dispatcher) {
		if shell != "" {
			d.shell = shell
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(d *Dispatcher) {
		d.recorder = recorder
	}
}

// New returns a Dispatcher using sh and discarding logs unless configured.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		shell:  DefaultShell,
		logger: zap.NewNop(),
		tracer: noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Shell returns the configured interpreter.
func (d *Dispatcher) Shell() string { return d.shell }

// Matches reports whether a handler with trigger fires for outcome.
func Matches(trigger healthcheck.State, outcome healthcheck.Outcome) bool {
	switch trigger {
	case healthcheck.Failed:
		return outcome.AnyFailed
	case healthcheck.Ok:
		return outcome.AnySucceeded
	default:
		return false
	}
}

// Dispatch runs every matching handler in declared order, one after another.
// Failures are logged and returned; they never stop later handlers.
func (d *Dispatcher) Dispatch(ctx context.Context, configName string, outcome healthcheck.Outcome, handlers []configuration.Handler) []Result {
	var results []Result
	for _, h := range handlers {
		if !Matches(h.State, outcome) {
			continue
		}
		results = append(results, d.Run(ctx, configName, h))
	}
	return results
}

// Run executes one handler. The command is not bound to ctx: a handler that
// has started runs to completion even if the daemon is shutting down.
func (d *Dispatcher) Run(ctx context.Context, configName string, h configuration.Handler) Result {
	ctx, span := d.tracer.Start(ctx, "handler.run", trace.WithAttributes(
		attribute.String("handler.name", h.DisplayName()),
		attribute.String("handler.config", configName),
		attribute.String("handler.trigger", string(h.State)),
	))
	defer span.End()

	logger := d.logger.With(
		zap.String("handler", h.DisplayName()),
		zap.String("config", configName),
		zap.String("command", h.Command),
	)
	logger.Info("running handler command", zap.String("trigger", string(h.State)))

	res := Result{Handler: h.DisplayName(), Trigger: h.State}
	start := time.Now()

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(d.shell, "-c", h.Command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	res.Duration = time.Since(start)

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.Status = Succeeded
		logger.Debug("handler command finished",
			zap.Duration("duration", res.Duration),
			zap.ByteString("stdout", stdout.Bytes()),
			zap.ByteString("stderr", stderr.Bytes()))
	case errors.As(err, &exitErr):
		res.Status = CommandFailed
		res.ExitCode = exitErr.ExitCode()
		res.Err = err
		logger.Error("command failed", zap.Int("exit_code", res.ExitCode), zap.Duration("duration", res.Duration))
		logger.Debug("failed command output",
			zap.ByteString("stdout", stdout.Bytes()),
			zap.ByteString("stderr", stderr.Bytes()))
	default:
		res.Status = LaunchFailed
		res.ExitCode = -1
		res.Err = err
		logger.Error("failed to run command", zap.String("shell", d.shell), zap.Error(err))
	}

	span.SetAttributes(
		attribute.String("handler.status", string(res.Status)),
		attribute.Int("handler.exit_code", res.ExitCode),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, string(res.Status))
	}
	if d.recorder != nil {
		d.recorder.RecordHandler(ctx, h.State, res.Status, res.Duration)
	}
	return res
}
