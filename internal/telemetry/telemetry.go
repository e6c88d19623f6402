// Package telemetry sets up OpenTelemetry tracing and metrics for handyman
// and provides the probe and handler instruments.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jerkytreats/handyman/internal/config"
)

// Config selects exporters. "none" or "" disables a signal.
type Config struct {
	ServiceName     string
	Version         string
	TracingExporter string
	MetricsExporter string
	// Registerer receives the Prometheus collector; nil uses the default registry.
	Registerer prometheus.Registerer
}

// ConfigFromSettings reads the telemetry keys of the daemon settings.
func ConfigFromSettings() Config {
	return Config{
		ServiceName:     config.GetString(config.TelemetryServiceNameKey),
		Version:         config.GetString(config.AppVersionKey),
		TracingExporter: config.GetString(config.TelemetryTracingExporterKey),
		MetricsExporter: config.GetString(config.TelemetryMetricsExporterKey),
	}
}

func enabled(exporter string) bool {
	return exporter != "" && exporter != "none"
}

// Provider owns the tracer and meter providers for the process.
type Provider struct {
	tracer         trace.Tracer
	meter          metric.Meter
	instruments    *Instruments
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// New builds the providers. Providers are not installed globally; callers pass
// the tracer and instruments to the components that need them.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "handyman"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	p := &Provider{}

	if enabled(cfg.TracingExporter) {
		exporter, err := NewTracingExporter(ctx, cfg.TracingExporter)
		if err != nil {
			return nil, fmt.Errorf("failed to setup tracing: %w", err)
		}
		p.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(exporter),
		)
		p.tracer = p.tracerProvider.Tracer(cfg.ServiceName)
	} else {
		p.tracer = tracenoop.NewTracerProvider().Tracer(cfg.ServiceName)
	}

	if enabled(cfg.MetricsExporter) {
		reader, err := NewMetricsReader(ctx, cfg.MetricsExporter, cfg.Registerer)
		if err != nil {
			_ = p.Shutdown(ctx)
			return nil, fmt.Errorf("failed to setup metrics: %w", err)
		}
		p.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(reader),
		)
		p.meter = p.meterProvider.Meter(cfg.ServiceName)
	} else {
		p.meter = metricnoop.NewMeterProvider().Meter(cfg.ServiceName)
	}

	p.instruments, err = NewInstruments(p.meter)
	if err != nil {
		_ = p.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create instruments: %w", err)
	}
	return p, nil
}

func (p *Provider) Tracer() trace.Tracer { return p.tracer }

func (p *Provider) Meter() metric.Meter { return p.meter }

// Instruments returns the probe and handler recorders.
func (p *Provider) Instruments() *Instruments { return p.instruments }

// Shutdown flushes and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}
