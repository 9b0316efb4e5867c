package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for every span the server emits.
const TracerName = "github.com/krug-dev/krug-mcp"

// Span attribute keys.
const (
	SpanAttrMethod    = "rpc.method"
	SpanAttrTool      = "mcp.tool"
	SpanAttrRisk      = "mcp.tool.risk"
	SpanAttrResource  = "mcp.resource.uri"
	SpanAttrErrorCode = "rpc.jsonrpc.error_code"
	SpanAttrSubject   = "mcp.subject"
)

// StartRPCSpan starts a server span for one JSON-RPC method dispatch.
func StartRPCSpan(ctx context.Context, method string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{attribute.String(SpanAttrMethod, method)}, attrs...)
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "jsonrpc."+method,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// StartToolSpan starts an internal span around a tool invocation.
func StartToolSpan(ctx context.Context, tool string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{attribute.String(SpanAttrTool, tool)}, attrs...)
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, "tool."+tool,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// SetSpanError records err on span and marks it failed. A nil err is ignored.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// TraceID returns the trace id of the span in ctx, or "".
func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
