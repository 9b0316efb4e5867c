package http

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/krug-dev/krug-mcp/internal/ctxkey"
)

// RequestIDHeader carries the caller's correlation id. It is echoed back.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds client-supplied ids before they reach log lines.
const maxRequestIDLen = 128

// requestMeta is what the outer middleware learns about a request.
type requestMeta struct {
	id       string
	remoteIP string
}

type requestMetaKey struct{}

// LoggerKey is the context key for the enriched logger.
var LoggerKey = ctxkey.LoggerKey{}

func metaFromContext(ctx context.Context) *requestMeta {
	m, _ := ctx.Value(requestMetaKey{}).(*requestMeta)
	return m
}

// RequestIDMiddleware accepts a well-formed X-Request-ID or mints a uuid,
// echoes it, and stores a logger carrying request_id in the context.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := sanitizeRequestID(r.Header.Get(RequestIDHeader))
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			ctx := context.WithValue(r.Context(), requestMetaKey{}, &requestMeta{id: id})
			ctx = withLogger(ctx, logger.With("request_id", id))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sanitizeRequestID returns id if it is short and printable ASCII, else "".
func sanitizeRequestID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxRequestIDLen {
		return ""
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return ""
		}
	}
	return id
}

// LoggerFromContext retrieves the enriched logger from context.
// Returns slog.Default() if no logger is in context.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// RequestIDFromContext returns the request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	if m := metaFromContext(ctx); m != nil {
		return m.id
	}
	return ""
}

func withLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// sessionFingerprint is logged instead of the raw session id.
func sessionFingerprint(id string) string {
	if id == "" {
		return ""
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(id))
}

// DNSRebindingProtection rejects browser requests whose Origin is not in
// the allowlist. Requests without Origin pass. An empty allowlist disables
// the check; the endpoint is token protected.
func DNSRebindingProtection(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[normalizeOrigin(origin)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		if len(allowed) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := allowed[normalizeOrigin(origin)]; !ok {
				LoggerFromContext(r.Context()).Warn("rejected cross-origin request", "origin", origin)
				writeJSON(w, http.StatusForbidden, map[string]string{
					"error":   "forbidden_origin",
					"message": "Origin not allowed",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// normalizeOrigin lowercases scheme and host and drops a trailing slash.
func normalizeOrigin(origin string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(origin)), "/")
}

// RealIPMiddleware records the client address and adds it to the logger.
// Only the first X-Forwarded-For hop is trusted; unparsable values fall
// through to the next source.
func RealIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := extractRealIP(r)
		ctx := r.Context()
		if m := metaFromContext(ctx); m != nil {
			m.remoteIP = ip
		} else {
			ctx = context.WithValue(ctx, requestMetaKey{}, &requestMeta{remoteIP: ip})
		}
		ctx = withLogger(ctx, LoggerFromContext(ctx).With("remote_ip", ip))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RealIPFromContext returns the client IP stored by RealIPMiddleware.
func RealIPFromContext(ctx context.Context) string {
	if m := metaFromContext(ctx); m != nil {
		return m.remoteIP
	}
	return ""
}

func extractRealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := validIP(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	if ip := validIP(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func validIP(s string) string {
	s = strings.TrimSpace(s)
	if net.ParseIP(s) == nil {
		return ""
	}
	return s
}
