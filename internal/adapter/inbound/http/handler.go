package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/krug-dev/krug-mcp/internal/domain/auth"
	"github.com/krug-dev/krug-mcp/internal/domain/session"
	"github.com/krug-dev/krug-mcp/internal/service"
)

// DefaultMaxBodyBytes is the request body limit (1 MB).
const DefaultMaxBodyBytes = 1 << 20

// MCPSessionIDHeader is the header for session identification.
const MCPSessionIDHeader = "Mcp-Session-Id"

// MCPConnectionIDHeader echoes the session id on buffered POST responses.
const MCPConnectionIDHeader = "X-MCP-Connection-Id"

// Route paths.
const (
	pathMain         = "/mcp"
	pathMainSlash    = "/mcp/"
	pathCapabilities = "/mcp/capabilities"
	pathPing         = "/mcp/ping"
)

const emptyBodyMessage = "Empty request body - JSON-RPC requires request body"

// mcpHandler serves every /mcp route.
type mcpHandler struct {
	authn     *auth.Authenticator
	sessions  *session.Manager
	requests  *service.RequestHandler
	formatter *ResponseFormatter
	metrics   *Metrics
	info      service.ServerInfo
	baseURL   string
	maxBody   int64
	now       func() time.Time
}

func (h *mcpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Preflight is answered before authentication.
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method == http.MethodHead && isMainPath(r.URL.Path) {
		h.setMCPHeaders(w)
		w.WriteHeader(http.StatusOK)
		return
	}

	caller, err := h.authenticate(r)
	if err != nil {
		h.writeUnauthorized(w, r, err)
		return
	}

	logger := LoggerFromContext(r.Context()).With("subject", caller.Subject)
	r = r.WithContext(withLogger(r.Context(), logger))

	switch {
	case isMainPath(r.URL.Path):
		switch r.Method {
		case http.MethodPost:
			h.handlePost(w, r, caller)
		case http.MethodGet:
			h.handleServerInfo(w, r)
		case http.MethodDelete:
			h.handleDelete(w, r)
		default:
			w.Header().Set("Allow", "GET, POST, DELETE, HEAD, OPTIONS")
			h.writeMethodNotAllowed(w)
		}
	case r.URL.Path == pathCapabilities && r.Method == http.MethodGet:
		echoSessionID(w, r)
		h.setMCPHeaders(w)
		writeJSON(w, http.StatusOK, buildCapabilities(h.info, requestBaseURL(r, h.baseURL)))
	case r.URL.Path == pathPing && r.Method == http.MethodGet:
		echoSessionID(w, r)
		h.setMCPHeaders(w)
		writeJSON(w, http.StatusOK, buildPing(h.info, h.now()))
	default:
		echoSessionID(w, r)
		writeJSON(w, http.StatusNotFound, notFoundDoc{
			Error:         "not_found",
			Message:       "Invalid MCP endpoint path",
			AttemptedPath: r.URL.Path,
		})
	}
}

func isMainPath(p string) bool {
	return p == pathMain || p == pathMainSlash
}

func (h *mcpHandler) authenticate(r *http.Request) (*auth.AuthContext, error) {
	return h.authn.Authenticate(auth.RequestInfo{
		Header:    r.Header,
		Method:    r.Method,
		RequestID: RequestIDFromContext(r.Context()),
		RemoteIP:  RealIPFromContext(r.Context()),
	})
}

func (h *mcpHandler) writeUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	reason := "invalid"
	if errors.Is(err, auth.ErrMissingCredentials) {
		reason = "missing"
	}
	h.metrics.AuthFailures.WithLabelValues(reason).Inc()
	LoggerFromContext(r.Context()).Info("authentication failed", "reason", reason, "path", r.URL.Path)

	h.formatter.Format(KindUnauthorized, FormatInput{
		Message: err.Error(),
		BaseURL: requestBaseURL(r, h.baseURL),
	}).Write(w)
}

func (h *mcpHandler) writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, methodNotAllowedDoc{
		Error:              "method_not_allowed",
		Message:            "JSON-RPC methods must use POST requests with streamable HTTP transport",
		SupportedTransport: transportStreamableHTTP,
		CorrectMethod:      http.MethodPost,
	})
}

// handleServerInfo serves GET /mcp. It never touches the session store.
func (h *mcpHandler) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	echoSessionID(w, r)
	if r.URL.Query().Has("method") {
		h.writeMethodNotAllowed(w)
		return
	}
	h.setMCPHeaders(w)
	writeJSON(w, http.StatusOK, buildServerInfo(h.info, requestBaseURL(r, h.baseURL)))
}

// handleDelete soft-deletes the session named in the request header.
func (h *mcpHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(MCPSessionIDHeader)
	echoSessionID(w, r)
	logger := LoggerFromContext(r.Context()).With("session_fp", sessionFingerprint(id))

	destroyed, err := h.sessions.Destroy(r.Context(), id)
	if err != nil {
		logger.Error("failed to destroy session", "error", err)
		h.formatter.Format(KindServerError, FormatInput{Data: "failed to destroy session"}).Write(w)
		return
	}
	if destroyed {
		h.metrics.SessionEvents.WithLabelValues("destroyed").Inc()
		logger.Info("session marked for cleanup", "grace_ttl", h.sessions.GraceTTL())
	}
	h.setMCPHeaders(w)
	w.WriteHeader(http.StatusOK)
}

func (h *mcpHandler) handlePost(w http.ResponseWriter, r *http.Request, caller *auth.AuthContext) {
	ctx := r.Context()

	sess, err := h.resolveSession(ctx, r.Header.Get(MCPSessionIDHeader))
	if err != nil {
		LoggerFromContext(ctx).Error("failed to resolve session", "error", err)
		f := h.formatter.Format(KindServerError, FormatInput{Data: "session store unavailable"})
		f.Status = http.StatusInternalServerError
		f.Write(w)
		return
	}
	w.Header().Set(MCPSessionIDHeader, sess.ID)

	logger := LoggerFromContext(ctx).With("session_fp", sessionFingerprint(sess.ID))
	ctx = withLogger(ctx, logger)

	body, err := h.readBody(w, r)
	if err != nil {
		h.formatter.Format(KindParseError, FormatInput{Data: err.Error()}).Write(w)
		return
	}

	call, err := h.requests.Parse(body)
	if err != nil {
		logger.Debug("rejecting malformed request", "error", err)
		h.formatter.Format(parseErrorKind(err), FormatInput{Data: parseDetail(err)}).Write(w)
		return
	}

	if caller.WantsSSE() {
		h.stream(ctx, w, call, sess, caller)
		return
	}

	out, err := h.requests.Execute(ctx, call, sess, caller)
	h.saveSession(ctx, sess)
	if err != nil {
		logger.Error("request dispatch failed", "method", call.Method(), "error", err)
		h.formatter.Format(KindServerError, FormatInput{ID: call.ID(), Data: errorDetail(err)}).Write(w)
		return
	}

	if out.Notification {
		h.setMCPHeaders(w)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	f := h.formatter.Format(KindJSONResponse, FormatInput{ID: out.RequestID, Body: out.Response})
	f.Header.Set(MCPConnectionIDHeader, sess.ID)
	f.Write(w)
}

// stream answers one request as an SSE stream: keep-alive comment, one
// message or error event, then complete. The stream ends on every path.
func (h *mcpHandler) stream(ctx context.Context, w http.ResponseWriter, call *service.Call, sess *session.Session, caller *auth.AuthContext) {
	sw := newSSEWriter(w)
	sw.open(h.formatter.MCPHeaders())
	defer sw.close()

	sw.comment("ok")

	result := "empty"
	func() {
		defer func() {
			if p := recover(); p != nil {
				LoggerFromContext(ctx).Error("panic while streaming response", "panic", p)
				result = eventError
				sw.event(eventError, sseError(panicDetail(p)))
			}
		}()

		out, err := h.requests.Execute(ctx, call, sess, caller)
		h.saveSession(ctx, sess)
		switch {
		case err != nil:
			LoggerFromContext(ctx).Error("request dispatch failed", "method", call.Method(), "error", err)
			result = eventError
			sw.event(eventError, sseError(errorDetail(err)))
		case !out.Notification:
			result = eventMessage
			f := h.formatter.Format(KindJSONResponse, FormatInput{ID: out.RequestID, Body: out.Response})
			sw.event(eventMessage, json.RawMessage(f.Body))
		}
	}()

	sw.event(eventComplete, map[string]string{"timestamp": h.now().UTC().Format(time.RFC3339)})
	h.metrics.SSEStreamsTotal.WithLabelValues(result).Inc()

	if sw.err != nil {
		LoggerFromContext(ctx).Debug("client went away during stream", "error", sw.err)
	}
}

func sseError(data string) map[string]any {
	return map[string]any{"code": -32603, "message": internalErrorMessage, "data": data}
}

func (h *mcpHandler) resolveSession(ctx context.Context, id string) (*session.Session, error) {
	sess, err := h.sessions.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case sess.MarkedForCleanup:
		h.metrics.SessionEvents.WithLabelValues("closing").Inc()
	case sess.RequestCount == 1:
		h.metrics.SessionEvents.WithLabelValues("created").Inc()
	default:
		h.metrics.SessionEvents.WithLabelValues("resumed").Inc()
	}
	return sess, nil
}

func (h *mcpHandler) saveSession(ctx context.Context, sess *session.Session) {
	if err := h.sessions.Save(ctx, sess); err != nil {
		LoggerFromContext(ctx).Warn("failed to save session", "error", err)
	}
}

func (h *mcpHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, errors.New("request body too large")
		}
		return nil, errors.New("failed to read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New(emptyBodyMessage)
	}
	return body, nil
}

func parseErrorKind(err error) ResponseKind {
	var pe *service.ParseError
	if errors.As(err, &pe) && pe.InvalidRequest() {
		return KindInvalidRequest
	}
	return KindParseError
}

// parseDetail strips the ParseError prefix, which would repeat the envelope
// message.
func parseDetail(err error) string {
	var pe *service.ParseError
	if errors.As(err, &pe) {
		return pe.Err.Error()
	}
	return err.Error()
}

// errorDetail unwraps handler errors to the message clients should see.
func errorDetail(err error) string {
	var de *service.DispatchError
	if errors.As(err, &de) {
		return de.Err.Error()
	}
	return err.Error()
}

func panicDetail(p any) string {
	if err, ok := p.(error); ok {
		return err.Error()
	}
	if s, ok := p.(string); ok {
		return s
	}
	return "unexpected panic"
}

// setMCPHeaders adds the capability advertisement to a response that is not
// built by the formatter.
func (h *mcpHandler) setMCPHeaders(w http.ResponseWriter) {
	for k, v := range h.formatter.MCPHeaders() {
		w.Header()[k] = v
	}
}

func echoSessionID(w http.ResponseWriter, r *http.Request) {
	if id := r.Header.Get(MCPSessionIDHeader); id != "" {
		w.Header().Set(MCPSessionIDHeader, id)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write JSON response", "error", err)
	}
}
