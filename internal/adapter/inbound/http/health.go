package http

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"
)

// healthProbeTimeout bounds each component probe.
const healthProbeTimeout = 2 * time.Second

// Check states.
const (
	checkOK            = "ok"
	checkError         = "error"
	checkNotConfigured = "not configured"
)

// Pinger is a component that can report its own health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ComponentCheck is the probe result for one dependency.
type ComponentCheck struct {
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// HealthResponse is the /health document. Status is "unhealthy" as soon as
// any configured component fails its probe.
type HealthResponse struct {
	Status        string                    `json:"status"`
	Version       string                    `json:"version,omitempty"`
	UptimeSeconds int64                     `json:"uptime_seconds"`
	Goroutines    int                       `json:"goroutines"`
	Checks        map[string]ComponentCheck `json:"checks"`
}

type namedPinger struct {
	name string
	p    Pinger
}

// HealthChecker probes the session store and any extra components.
type HealthChecker struct {
	components []namedPinger
	version    string
	started    time.Time
	now        func() time.Time
}

// NewHealthChecker creates a HealthChecker. sessionStore may be nil, in
// which case it is reported as not configured.
func NewHealthChecker(sessionStore Pinger, version string) *HealthChecker {
	return &HealthChecker{
		components: []namedPinger{{name: "session_store", p: sessionStore}},
		version:    version,
		started:    time.Now(),
		now:        time.Now,
	}
}

// AddCheck registers another component under name.
func (h *HealthChecker) AddCheck(name string, p Pinger) *HealthChecker {
	h.components = append(h.components, namedPinger{name: name, p: p})
	return h
}

// Check probes every component in registration order.
func (h *HealthChecker) Check(ctx context.Context) HealthResponse {
	resp := HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: int64(h.now().Sub(h.started).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		Checks:        make(map[string]ComponentCheck, len(h.components)),
	}

	for _, c := range h.components {
		check := h.probe(ctx, c.p)
		if check.Status == checkError {
			resp.Status = "unhealthy"
		}
		resp.Checks[c.name] = check
	}
	return resp
}

func (h *HealthChecker) probe(ctx context.Context, p Pinger) ComponentCheck {
	if p == nil {
		return ComponentCheck{Status: checkNotConfigured}
	}
	pctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	start := h.now()
	err := p.Ping(pctx)
	check := ComponentCheck{
		Status:    checkOK,
		LatencyMS: float64(h.now().Sub(start).Microseconds()) / 1000,
	}
	if err != nil {
		check.Status = checkError
		check.Error = err.Error()
	}
	return check
}

// Names returns the registered component names, sorted.
func (h *HealthChecker) Names() []string {
	out := make([]string, 0, len(h.components))
	for _, c := range h.components {
		out = append(out, c.name)
	}
	sort.Strings(out)
	return out
}

// Handler serves the health document, with 503 when unhealthy.
func (h *HealthChecker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := h.Check(r.Context())

		status := http.StatusOK
		if health.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, status, health)
	})
}
