package http

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/krug-dev/krug-mcp/internal/domain/auth"
	"github.com/krug-dev/krug-mcp/internal/domain/session"
	"github.com/krug-dev/krug-mcp/internal/service"
)

// DefaultAddr listens on localhost only.
const DefaultAddr = "127.0.0.1:8080"

const shutdownTimeout = 10 * time.Second

// HTTPTransport is the inbound adapter that serves MCP clients over HTTP.
type HTTPTransport struct {
	requests       *service.RequestHandler
	authn          *auth.Authenticator
	sessions       *session.Manager
	server         *http.Server
	addr           string
	allowedOrigins []string
	certFile       string
	keyFile        string
	baseURL        string
	maxBodyBytes   int64
	logger         *slog.Logger
	registry       *prometheus.Registry
	metrics        *Metrics
	healthChecker  *HealthChecker
	now            func() time.Time
}

// Option is a functional option for configuring HTTPTransport.
type Option func(*HTTPTransport)

// WithAddr sets the listen address for the HTTP server.
// Default is "127.0.0.1:8080" (localhost only).
func WithAddr(addr string) Option {
	return func(t *HTTPTransport) {
		t.addr = addr
	}
}

// WithTLS enables TLS with the provided certificate and key files.
func WithTLS(certFile, keyFile string) Option {
	return func(t *HTTPTransport) {
		t.certFile = certFile
		t.keyFile = keyFile
	}
}

// WithAllowedOrigins sets the allowed origins for DNS rebinding protection.
// If empty, the Origin header is not checked.
func WithAllowedOrigins(origins []string) Option {
	return func(t *HTTPTransport) {
		t.allowedOrigins = origins
	}
}

// WithLogger sets the logger for the HTTP transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// WithHealthChecker sets the health checker for the /health endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(t *HTTPTransport) {
		t.healthChecker = hc
	}
}

// WithMetrics shares a registry and metric set with the rest of the
// process, so tool observations and HTTP metrics land on one /metrics page.
func WithMetrics(reg *prometheus.Registry, m *Metrics) Option {
	return func(t *HTTPTransport) {
		t.registry = reg
		t.metrics = m
	}
}

// WithBaseURL fixes the base URL used in discovery documents instead of
// deriving it from each request.
func WithBaseURL(baseURL string) Option {
	return func(t *HTTPTransport) {
		t.baseURL = baseURL
	}
}

// WithMaxBodyBytes caps POST bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(t *HTTPTransport) {
		if n > 0 {
			t.maxBodyBytes = n
		}
	}
}

// WithClock overrides time.Now for ping and stream timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *HTTPTransport) {
		t.now = now
	}
}

// NewHTTPTransport creates an HTTP transport in front of the request
// handler. Every /mcp route except OPTIONS and HEAD requires authn to pass.
func NewHTTPTransport(requests *service.RequestHandler, authn *auth.Authenticator, sessions *session.Manager, opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		requests:       requests,
		authn:          authn,
		sessions:       sessions,
		addr:           DefaultAddr,
		allowedOrigins: []string{},
		maxBodyBytes:   DefaultMaxBodyBytes,
		logger:         slog.Default(),
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.registry == nil {
		t.registry = prometheus.NewRegistry()
		t.metrics = NewMetrics(t.registry)
	}
	if t.healthChecker == nil {
		t.healthChecker = NewHealthChecker(sessions, requests.Engine().Info().Version)
	}

	return t
}

// Metrics returns the transport's metric set.
func (t *HTTPTransport) Metrics() *Metrics {
	return t.metrics
}

// Handler builds the full route tree with its middleware chain.
func (t *HTTPTransport) Handler() http.Handler {
	info := t.requests.Engine().Info()

	// Middleware order (outermost first):
	// Metrics -> RequestID -> RealIP -> DNSRebinding -> MCP routes
	var mcp http.Handler = &mcpHandler{
		authn:     t.authn,
		sessions:  t.sessions,
		requests:  t.requests,
		formatter: NewResponseFormatter(info.ProtocolVersion, t.logger),
		metrics:   t.metrics,
		info:      info,
		baseURL:   t.baseURL,
		maxBody:   t.maxBodyBytes,
		now:       t.now,
	}
	mcp = DNSRebindingProtection(t.allowedOrigins)(mcp)
	mcp = RealIPMiddleware(mcp)
	mcp = RequestIDMiddleware(t.logger)(mcp)
	mcp = MetricsMiddleware(t.metrics)(mcp)

	mux := http.NewServeMux()
	mux.Handle("/health", t.healthChecker.Handler())
	mux.Handle("/metrics", promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{
		Registry: t.registry,
	}))
	mux.Handle("/mcp", mcp)
	mux.Handle("/mcp/", mcp)
	// Anything else is answered with the MCP 404 document.
	mux.Handle("/", mcp)
	return mux
}

// RegisterRuntimeCollectors adds Go runtime and process collectors to reg.
func RegisterRuntimeCollectors(reg prometheus.Registerer) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Start begins accepting HTTP connections.
// It blocks until the context is cancelled or the server fails.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.server = &http.Server{
		Addr:              t.addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if t.certFile != "" && t.keyFile != "" {
		t.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	errCh := make(chan error, 1)

	go func() {
		var err error
		if t.certFile != "" && t.keyFile != "" {
			t.logger.Info("starting HTTPS server", "addr", t.addr)
			err = t.server.ListenAndServeTLS(t.certFile, t.keyFile)
		} else {
			t.logger.Info("starting HTTP server", "addr", t.addr)
			err = t.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

func (t *HTTPTransport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}

	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *HTTPTransport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}
