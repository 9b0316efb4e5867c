package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DefaultMetricsInterval is the stdout metric export period.
const DefaultMetricsInterval = time.Minute

// Config selects which signals are exported.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// Tracing exports spans to Writer.
	Tracing bool
	// Metrics exports tool-call instruments to Writer every MetricsInterval.
	Metrics         bool
	MetricsInterval time.Duration

	// Writer receives exported telemetry. Default: os.Stderr.
	Writer io.Writer
}

// Provider owns the SDK providers installed as the otel globals.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *metric.MeterProvider
	instruments    *Instruments
}

// NewProvider installs exporters according to cfg. With both signals off it
// returns a provider that leaves the globals untouched.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{}
	if !cfg.Tracing && !cfg.Metrics {
		p.instruments = newInstruments(otel.GetMeterProvider().Meter(cfg.ServiceName))
		return p, nil
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	}
	if hostname, err := os.Hostname(); err == nil {
		attrs = append(attrs, attribute.String("service.instance.id", hostname))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if cfg.Tracing {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		p.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(exporter),
		)
		otel.SetTracerProvider(p.tracerProvider)
	}

	if cfg.Metrics {
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
		if err != nil {
			_ = p.Shutdown(ctx)
			return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}
		interval := cfg.MetricsInterval
		if interval <= 0 {
			interval = DefaultMetricsInterval
		}
		p.meterProvider = metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(interval))),
		)
		otel.SetMeterProvider(p.meterProvider)
	}

	slog.Info("telemetry enabled", "tracing", cfg.Tracing, "metrics", cfg.Metrics)

	p.instruments = newInstruments(otel.GetMeterProvider().Meter(cfg.ServiceName))
	return p, nil
}

// Instruments returns the tool-call instruments bound to this provider.
func (p *Provider) Instruments() *Instruments {
	return p.instruments
}

// Shutdown flushes and stops the installed providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
