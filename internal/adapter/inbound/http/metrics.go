package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/krug-dev/krug-mcp/internal/domain/tool"
	"github.com/krug-dev/krug-mcp/internal/service"
)

const metricsNamespace = "krugmcp"

// Metrics holds all Prometheus metrics for the server.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ToolCallsTotal   *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec
	SSEStreamsTotal  *prometheus.CounterVec
	SessionEvents    *prometheus.CounterVec
	AuthFailures     *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "MCP HTTP requests by route, method and status class",
			},
			[]string{"route", "method", "code"}, // code=2xx/4xx/5xx
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "request_duration_seconds",
				Help:      "MCP HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"route", "mode"}, // mode=json/sse
		),
		ToolCallsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "tool_calls_total",
				Help:      "Total tools/call invocations",
			},
			[]string{"tool", "risk", "outcome"},
		),
		ToolCallDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Tool invocation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		SSEStreamsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "sse_streams_total",
				Help:      "Total SSE responses by terminal event",
			},
			[]string{"result"}, // result=message/error/empty
		),
		SessionEvents: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "session_events_total",
				Help:      "Session lifecycle events",
			},
			[]string{"event"}, // event=created/resumed/closing/destroyed
		),
		AuthFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "auth_failures_total",
				Help:      "Rejected requests by reason",
			},
			[]string{"reason"}, // reason=missing/invalid
		),
	}
}

// ObserveToolCall records a tools/call. It implements service.ToolObserver.
func (m *Metrics) ObserveToolCall(name string, risk tool.RiskLevel, outcome string, d time.Duration) {
	m.ToolCallsTotal.WithLabelValues(name, string(risk), outcome).Inc()
	m.ToolCallDuration.WithLabelValues(name).Observe(d.Seconds())
}

var _ service.ToolObserver = (*Metrics)(nil)
