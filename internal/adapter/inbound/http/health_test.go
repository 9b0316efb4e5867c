package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/krug-dev/krug-mcp/internal/adapter/outbound/memory"
)

type failingPinger struct{ err error }

func (p failingPinger) Ping(context.Context) error { return p.err }

func TestHealthChecker_Healthy(t *testing.T) {
	store := memory.NewSessionStore()
	defer func() { _ = store.Close() }()

	health := NewHealthChecker(store, "test-version").Check(context.Background())

	if health.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", health.Status)
	}
	if health.Version != "test-version" {
		t.Errorf("Version = %q, want test-version", health.Version)
	}
	if got := health.Checks["session_store"].Status; got != checkOK {
		t.Errorf("session_store = %q, want ok", got)
	}
	if health.Goroutines <= 0 {
		t.Errorf("Goroutines = %d, want > 0", health.Goroutines)
	}
}

func TestHealthChecker_NilStore(t *testing.T) {
	health := NewHealthChecker(nil, "").Check(context.Background())

	if health.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", health.Status)
	}
	if got := health.Checks["session_store"].Status; got != checkNotConfigured {
		t.Errorf("session_store = %q, want %q", got, checkNotConfigured)
	}
}

func TestHealthChecker_ExtraCheckFails(t *testing.T) {
	hc := NewHealthChecker(failingPinger{}, "").
		AddCheck("telemetry", failingPinger{err: errors.New("exporter closed")})

	health := hc.Check(context.Background())
	if health.Status != "unhealthy" {
		t.Errorf("Status = %q, want unhealthy", health.Status)
	}
	if got := health.Checks["telemetry"]; got.Status != checkError || got.Error != "exporter closed" {
		t.Errorf("telemetry check = %+v", got)
	}
	if got := hc.Names(); len(got) != 2 || got[0] != "session_store" || got[1] != "telemetry" {
		t.Errorf("Names() = %v", got)
	}
}

func TestHealthChecker_Uptime(t *testing.T) {
	hc := NewHealthChecker(nil, "")
	hc.started = testNow
	hc.now = func() time.Time { return testNow.Add(90 * time.Second) }

	if got := hc.Check(context.Background()).UptimeSeconds; got != 90 {
		t.Errorf("UptimeSeconds = %d, want 90", got)
	}
}

func TestHealthChecker_Handler(t *testing.T) {
	tests := []struct {
		name       string
		pinger     Pinger
		wantCode   int
		wantStatus string
		wantError  string
	}{
		{"healthy", failingPinger{}, http.StatusOK, "healthy", ""},
		{"store down", failingPinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "unhealthy", "connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthChecker(tt.pinger, "1.0.0").Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
				t.Errorf("Content-Type = %q", ct)
			}

			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantStatus || resp.Version != "1.0.0" {
				t.Errorf("response = %+v", resp)
			}
			if got := resp.Checks["session_store"].Error; got != tt.wantError {
				t.Errorf("session_store error = %q, want %q", got, tt.wantError)
			}
		})
	}
}
