package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/krug-dev/krug-mcp/pkg/mcp"
)

// ResponseKind selects how the formatter shapes a response.
type ResponseKind string

// Response kinds.
const (
	KindParseError     ResponseKind = "parse_error"
	KindInvalidRequest ResponseKind = "invalid_request"
	KindServerError    ResponseKind = "server_error"
	KindEmptyResponse  ResponseKind = "empty_response"
	KindJSONResponse   ResponseKind = "json_response"
	KindUnauthorized   ResponseKind = "unauthorized"
)

const (
	parseErrorMessage     = "Parse error"
	invalidRequestMessage = "Invalid Request"
	internalErrorMessage  = "Internal error"
	emptyResponseMessage  = "Internal error - empty response"
	defaultAuthMessage    = "Authorization required"

	authServerPath        = "/.well-known/oauth-authorization-server"
	protectedResourcePath = "/.well-known/oauth-protected-resource/mcp"
)

// FormatInput carries everything a kind may need. Unused fields are ignored.
type FormatInput struct {
	// ID is echoed in JSON-RPC envelopes; nil becomes null.
	ID json.RawMessage
	// Data is the error detail for parse_error, invalid_request and server_error.
	Data any
	// Body is the already-encoded JSON-RPC document for json_response.
	Body []byte
	// Message is the failure reason for unauthorized.
	Message string
	// BaseURL roots the discovery links for unauthorized.
	BaseURL string
}

// Formatted is a complete HTTP response.
type Formatted struct {
	Status int
	Body   []byte
	Header http.Header
}

// Write copies headers, status and body to w.
func (f Formatted) Write(w http.ResponseWriter) {
	for k, v := range f.Header {
		w.Header()[k] = v
	}
	w.WriteHeader(f.Status)
	_, _ = w.Write(f.Body)
}

// ResponseFormatter builds JSON-RPC envelopes and the capability headers
// attached to every formatted response.
type ResponseFormatter struct {
	protocolVersion string
	logger          *slog.Logger
}

// NewResponseFormatter creates a formatter advertising protocolVersion.
func NewResponseFormatter(protocolVersion string, logger *slog.Logger) *ResponseFormatter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResponseFormatter{protocolVersion: protocolVersion, logger: logger}
}

// Format renders kind. Unknown kinds are logged and rendered as server_error.
func (f *ResponseFormatter) Format(kind ResponseKind, in FormatInput) Formatted {
	header := f.Headers()

	switch kind {
	case KindParseError:
		return f.envelope(http.StatusBadRequest, header, mcp.NewError(in.ID, mcp.ParseErrorCode, parseErrorMessage, in.Data))
	case KindInvalidRequest:
		return f.envelope(http.StatusBadRequest, header, mcp.NewError(in.ID, mcp.InvalidRequestCode, invalidRequestMessage, in.Data))
	case KindServerError:
		return f.envelope(http.StatusOK, header, mcp.NewError(in.ID, mcp.InternalErrorCode, internalErrorMessage, in.Data))
	case KindEmptyResponse:
		return f.envelope(http.StatusOK, header, mcp.NewError(in.ID, mcp.InternalErrorCode, emptyResponseMessage, nil))
	case KindJSONResponse:
		if err := mcp.ValidateResponse(in.Body); err != nil {
			f.logger.Error("invalid JSON-RPC response from handler", "error", err)
			return f.envelope(http.StatusOK, header, mcp.NewError(in.ID, mcp.InternalErrorCode, emptyResponseMessage, nil))
		}
		return Formatted{Status: http.StatusOK, Body: in.Body, Header: header}
	case KindUnauthorized:
		return f.unauthorized(header, in)
	default:
		f.logger.Error("unsupported response kind", "kind", string(kind))
		return f.Format(KindServerError, FormatInput{ID: in.ID, Data: fmt.Sprintf("unsupported response type: %s", kind)})
	}
}

// Headers returns the fixed capability advertisement block.
func (f *ResponseFormatter) Headers() http.Header {
	h := make(http.Header, 12)
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-Buffering", "no")
	h.Set("X-MCP-Transport", "streamable-http")
	h.Set("X-MCP-Protocol", "json-rpc-2.0")
	h.Set("X-MCP-Transport-Supported", "streamable-http")
	h.Set("X-MCP-Protocol-Version", f.protocolVersion)
	h.Set("X-MCP-Streaming", "true")
	h.Set("X-MCP-SSE-Supported", "true")
	h.Set("X-MCP-WebSocket-Supported", "false")
	h.Set("X-MCP-Auth-Version", f.protocolVersion)
	return h
}

// MCPHeaders returns only the X-MCP-* subset of Headers.
func (f *ResponseFormatter) MCPHeaders() http.Header {
	out := make(http.Header)
	for k, v := range f.Headers() {
		if strings.HasPrefix(k, "X-Mcp-") {
			out[k] = v
		}
	}
	return out
}

func (f *ResponseFormatter) envelope(status int, header http.Header, resp *mcp.Response) Formatted {
	body, err := json.Marshal(resp)
	if err != nil {
		// Data that cannot be encoded is dropped rather than failing the response.
		f.logger.Error("failed to encode error envelope", "error", err)
		resp.Error.Data = nil
		body, _ = json.Marshal(resp)
	}
	return Formatted{Status: status, Body: body, Header: header}
}

type link struct {
	Href string `json:"href"`
}

type unauthorizedBody struct {
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Links            map[string]link `json:"_links"`
}

func (f *ResponseFormatter) unauthorized(header http.Header, in FormatInput) Formatted {
	message := in.Message
	if message == "" {
		message = defaultAuthMessage
	}
	resourceMetadata := in.BaseURL + protectedResourcePath

	header.Set("WWW-Authenticate", fmt.Sprintf(
		`Bearer realm="MCP Server", error="invalid_token", error_description="%s", resource_metadata="%s"`,
		strings.ReplaceAll(message, `"`, `\"`), resourceMetadata,
	))

	body, _ := json.Marshal(unauthorizedBody{
		Error:            "unauthorized",
		ErrorDescription: message,
		Links: map[string]link{
			"oauth-authorization-server": {Href: in.BaseURL + authServerPath},
			"oauth-protected-resource":   {Href: resourceMetadata},
		},
	})
	return Formatted{Status: http.StatusUnauthorized, Body: body, Header: header}
}
