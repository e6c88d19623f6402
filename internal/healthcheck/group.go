package healthcheck

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Recorder receives one observation per probe evaluation.
type Recorder interface {
	RecordProbe(ctx context.Context, kind string, state State, latency time.Duration)
}

// Scope carries the correlation context and sinks for one evaluation pass.
// Zero values are usable: a nil Logger, Tracer or Recorder discards output.
type Scope struct {
	Config   string
	Logger   *zap.Logger
	Tracer   trace.Tracer
	Recorder Recorder
}

func (s Scope) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s Scope) tracer() trace.Tracer {
	if s.Tracer == nil {
		return noop.NewTracerProvider().Tracer("")
	}
	return s.Tracer
}

// Group is all probes of one type declared under one configuration.
type Group interface {
	Kind() string
	Len() int
	// Evaluate runs every probe in order and returns one state per probe
	// evaluated. It stops early when ctx is done.
	Evaluate(ctx context.Context, scope Scope) []State
	Probes() []Probe
}

type group[C Probe] struct {
	kind    string
	checker Checker[C]
	probes  []C
}

// NewGroup binds probes of one type to their checker.
func NewGroup[C Probe](kind string, checker Checker[C], probes ...C) Group {
	return &group[C]{kind: kind, checker: checker, probes: probes}
}

func (g *group[C]) Kind() string { return g.kind }

func (g *group[C]) Len() int { return len(g.probes) }

func (g *group[C]) Probes() []Probe {
	out := make([]Probe, len(g.probes))
	for i, p := range g.probes {
		out[i] = p
	}
	return out
}

func (g *group[C]) Evaluate(ctx context.Context, scope Scope) []State {
	states := make([]State, 0, len(g.probes))
	for _, probe := range g.probes {
		if ctx.Err() != nil {
			break
		}
		states = append(states, g.evaluate(ctx, scope, probe).State)
	}
	return states
}

func (g *group[C]) evaluate(ctx context.Context, scope Scope, probe C) Result {
	ctx, span := scope.tracer().Start(ctx, "healthcheck."+g.kind,
		trace.WithAttributes(
			attribute.String("healthcheck.kind", g.kind),
			attribute.String("healthcheck.probe", displayName(probe.ProbeName())),
			attribute.String("healthcheck.config", displayName(scope.Config)),
			attribute.String("healthcheck.target", probe.Target()),
		))
	defer span.End()

	start := time.Now()
	res := g.safeCheck(ctx, probe)
	if !res.State.Valid() {
		res = Fail(res.Latency, fmt.Errorf("checker returned invalid state %q", res.State))
	}
	if res.Latency == 0 {
		res.Latency = time.Since(start)
	}

	fields := []zap.Field{
		zap.String("probe", displayName(probe.ProbeName())),
		zap.String("config", displayName(scope.Config)),
		zap.String("kind", g.kind),
		zap.String("target", probe.Target()),
		zap.String("state", string(res.State)),
		zap.Duration("latency", res.Latency),
	}
	span.SetAttributes(attribute.String("healthcheck.state", string(res.State)))
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		scope.logger().Warn("health check failed", append(fields, zap.Error(res.Err))...)
	} else {
		scope.logger().Info("health check evaluated", fields...)
	}

	if scope.Recorder != nil {
		scope.Recorder.RecordProbe(ctx, g.kind, res.State, res.Latency)
	}
	return res
}

func (g *group[C]) safeCheck(ctx context.Context, probe C) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = Fail(time.Since(start), fmt.Errorf("checker panicked: %v", r))
		}
	}()
	return g.checker.Check(ctx, probe)
}
