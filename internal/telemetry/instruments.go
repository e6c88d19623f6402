package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jerkytreats/handyman/internal/dispatch"
	"github.com/jerkytreats/handyman/internal/healthcheck"
)

// Instruments records probe evaluations and handler runs. It implements both
// healthcheck.Recorder and dispatch.Recorder.
type Instruments struct {
	probeTotal      metric.Int64Counter
	probeDuration   metric.Float64Histogram
	handlerTotal    metric.Int64Counter
	handlerDuration metric.Float64Histogram
}

var (
	_ healthcheck.Recorder = (*Instruments)(nil)
	_ dispatch.Recorder    = (*Instruments)(nil)
)

// NewInstruments creates the instruments on meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	probeTotal, err := meter.Int64Counter(
		"handyman.probe.evaluations",
		metric.WithDescription("Total number of probe evaluations"),
		metric.WithUnit("{evaluation}"),
	)
	if err != nil {
		return nil, err
	}

	probeDuration, err := meter.Float64Histogram(
		"handyman.probe.duration",
		metric.WithDescription("Probe evaluation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	handlerTotal, err := meter.Int64Counter(
		"handyman.handler.runs",
		metric.WithDescription("Total number of handler command runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	handlerDuration, err := meter.Float64Histogram(
		"handyman.handler.duration",
		metric.WithDescription("Handler command duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Instruments{
		probeTotal:      probeTotal,
		probeDuration:   probeDuration,
		handlerTotal:    handlerTotal,
		handlerDuration: handlerDuration,
	}, nil
}

// RecordProbe counts one evaluation by kind and state.
func (i *Instruments) RecordProbe(ctx context.Context, kind string, state healthcheck.State, latency time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("state", string(state)),
	)
	i.probeTotal.Add(ctx, 1, opt)
	i.probeDuration.Record(ctx, float64(latency.Microseconds())/1000, opt)
}

// RecordHandler counts one handler run by trigger and status.
func (i *Instruments) RecordHandler(ctx context.Context, trigger healthcheck.State, status dispatch.Status, d time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("trigger", string(trigger)),
		attribute.String("status", string(status)),
	)
	i.handlerTotal.Add(ctx, 1, opt)
	i.handlerDuration.Record(ctx, float64(d.Microseconds())/1000, opt)
}
