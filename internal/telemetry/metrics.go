package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Instruments records tool-call activity through the otel metrics API.
// A nil *Instruments is valid and records nothing.
type Instruments struct {
	calls    otelmetric.Int64Counter
	duration otelmetric.Float64Histogram
}

func newInstruments(meter otelmetric.Meter) *Instruments {
	calls, err := meter.Int64Counter("mcp.tool.calls",
		otelmetric.WithDescription("Tool invocations by tool and outcome"),
	)
	if err != nil {
		slog.Warn("failed to create tool call counter", "error", err)
		return nil
	}
	duration, err := meter.Float64Histogram("mcp.tool.duration",
		otelmetric.WithDescription("Tool invocation latency"),
		otelmetric.WithUnit("s"),
	)
	if err != nil {
		slog.Warn("failed to create tool duration histogram", "error", err)
		return nil
	}
	return &Instruments{calls: calls, duration: duration}
}

// RecordToolCall records one invocation.
func (i *Instruments) RecordToolCall(ctx context.Context, tool, outcome string, d time.Duration) {
	if i == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("outcome", outcome),
	)
	i.calls.Add(ctx, 1, attrs)
	i.duration.Record(ctx, d.Seconds(), attrs)
}
