package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

func TestNewProvider_Disabled(t *testing.T) {
	before := otel.GetTracerProvider()

	p, err := NewProvider(context.Background(), Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Error("disabled provider replaced the global tracer provider")
	}

	// Recording through no-op instruments must not panic.
	p.Instruments().RecordToolCall(context.Background(), "echo", "ok", time.Millisecond)

	ctx, span := StartRPCSpan(context.Background(), "ping")
	span.End()
	if TraceID(ctx) != "" {
		t.Error("no-op span produced a trace id")
	}

	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewProvider_TracingExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	p, err := NewProvider(context.Background(), Config{
		ServiceName:    "krug-mcp-test",
		ServiceVersion: "0.0.1",
		Tracing:        true,
		Writer:         &buf,
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	ctx, span := StartRPCSpan(context.Background(), "tools/call")
	if TraceID(ctx) == "" {
		t.Error("TraceID() empty for recording span")
	}
	_, toolSpan := StartToolSpan(ctx, "create_order")
	if toolSpan.SpanContext().TraceID() != span.SpanContext().TraceID() {
		t.Error("tool span not parented to rpc span")
	}
	toolSpan.End()
	span.End()

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"jsonrpc.tools/call", "tool.create_order", "krug-mcp-test"} {
		if !strings.Contains(out, want) {
			t.Errorf("exported spans missing %q", want)
		}
	}
}

func TestSetSpanError_NilIsNoop(t *testing.T) {
	span := trace.SpanFromContext(context.Background())
	SetSpanError(span, nil)
}
