package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Route labels. Unknown paths collapse into routeOther so scanners cannot
// grow the series count.
const (
	routeMain         = "mcp"
	routeCapabilities = "capabilities"
	routePing         = "ping"
	routeOther        = "other"
)

// Response mode labels for request_duration_seconds.
const (
	modeJSON = "json"
	modeSSE  = "sse"
)

// MetricsMiddleware records requests_total{route,method,code} and
// request_duration_seconds{route,mode}. SSE streams are timed separately
// because they stay open for the whole dispatch.
func MetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := routeLabel(r.URL.Path)
			metrics.RequestDuration.WithLabelValues(route, rec.mode()).Observe(time.Since(start).Seconds())
			metrics.RequestsTotal.WithLabelValues(route, r.Method, codeClass(rec.status)).Inc()
		})
	}
}

// statusRecorder captures the status code and the content type committed
// with it.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	contentType string
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.contentType = r.Header().Get("Content-Type")
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

// Flush forwards to the underlying writer. SSE responses depend on it.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) mode() string {
	if strings.HasPrefix(r.contentType, "text/event-stream") {
		return modeSSE
	}
	return modeJSON
}

func routeLabel(path string) string {
	switch path {
	case pathMain, pathMainSlash:
		return routeMain
	case pathCapabilities:
		return routeCapabilities
	case pathPing:
		return routePing
	default:
		return routeOther
	}
}

// codeClass maps a status code to "2xx", "4xx" and so on.
func codeClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
