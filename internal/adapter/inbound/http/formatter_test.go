package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("failed to parse JSON-RPC body: %v\nbody: %s", err, body)
	}
	if env.JSONRPC != "2.0" {
		t.Errorf("jsonrpc = %q, want 2.0", env.JSONRPC)
	}
	return env
}

func TestFormat_ErrorKinds(t *testing.T) {
	f := NewResponseFormatter("2025-03-26", discardLogger())

	tests := []struct {
		name       string
		kind       ResponseKind
		in         FormatInput
		wantStatus int
		wantCode   int
		wantMsg    string
		wantID     string
		wantData   string
	}{
		{
			name:       "parse error",
			kind:       KindParseError,
			in:         FormatInput{Data: "unexpected end of JSON input"},
			wantStatus: http.StatusBadRequest,
			wantCode:   -32700,
			wantMsg:    "Parse error",
			wantID:     "null",
			wantData:   `"unexpected end of JSON input"`,
		},
		{
			name:       "invalid request",
			kind:       KindInvalidRequest,
			in:         FormatInput{Data: "method must be a string"},
			wantStatus: http.StatusBadRequest,
			wantCode:   -32600,
			wantMsg:    "Invalid Request",
			wantID:     "null",
			wantData:   `"method must be a string"`,
		},
		{
			name:       "server error with id",
			kind:       KindServerError,
			in:         FormatInput{ID: json.RawMessage(`7`), Data: "boom"},
			wantStatus: http.StatusOK,
			wantCode:   -32603,
			wantMsg:    "Internal error",
			wantID:     "7",
			wantData:   `"boom"`,
		},
		{
			name:       "empty response",
			kind:       KindEmptyResponse,
			in:         FormatInput{ID: json.RawMessage(`"abc"`)},
			wantStatus: http.StatusOK,
			wantCode:   -32603,
			wantMsg:    "Internal error - empty response",
			wantID:     `"abc"`,
		},
		{
			name:       "invalid json response degrades",
			kind:       KindJSONResponse,
			in:         FormatInput{ID: json.RawMessage(`1`), Body: []byte(`{"not":"jsonrpc"}`)},
			wantStatus: http.StatusOK,
			wantCode:   -32603,
			wantMsg:    "Internal error - empty response",
			wantID:     "1",
		},
		{
			name:       "unknown kind",
			kind:       ResponseKind("teapot"),
			in:         FormatInput{ID: json.RawMessage(`2`)},
			wantStatus: http.StatusOK,
			wantCode:   -32603,
			wantMsg:    "Internal error",
			wantID:     "2",
			wantData:   `"unsupported response type: teapot"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := f.Format(tt.kind, tt.in)
			if out.Status != tt.wantStatus {
				t.Errorf("status = %d, want %d", out.Status, tt.wantStatus)
			}
			env := decodeEnvelope(t, out.Body)
			if env.Error == nil {
				t.Fatalf("expected error member, body: %s", out.Body)
			}
			if env.Error.Code != tt.wantCode || env.Error.Message != tt.wantMsg {
				t.Errorf("error = %d %q, want %d %q", env.Error.Code, env.Error.Message, tt.wantCode, tt.wantMsg)
			}
			if string(env.ID) != tt.wantID {
				t.Errorf("id = %s, want %s", env.ID, tt.wantID)
			}
			if tt.wantData != "" && string(env.Error.Data) != tt.wantData {
				t.Errorf("data = %s, want %s", env.Error.Data, tt.wantData)
			}
			if out.Header.Get("X-MCP-Transport") != "streamable-http" {
				t.Error("capability headers missing")
			}
		})
	}
}

func TestFormat_JSONResponsePassthrough(t *testing.T) {
	f := NewResponseFormatter("2025-03-26", discardLogger())
	body := []byte(`{"jsonrpc":"2.0","id":3,"result":{}}`)

	out := f.Format(KindJSONResponse, FormatInput{ID: json.RawMessage(`3`), Body: body})

	if out.Status != http.StatusOK {
		t.Errorf("status = %d, want 200", out.Status)
	}
	if string(out.Body) != string(body) {
		t.Errorf("body = %s, want %s", out.Body, body)
	}
}

func TestFormat_Unauthorized(t *testing.T) {
	f := NewResponseFormatter("2025-03-26", discardLogger())

	out := f.Format(KindUnauthorized, FormatInput{Message: "invalid token", BaseURL: "https://mcp.example.com"})

	if out.Status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", out.Status)
	}
	want := `Bearer realm="MCP Server", error="invalid_token", error_description="invalid token", ` +
		`resource_metadata="https://mcp.example.com/.well-known/oauth-protected-resource/mcp"`
	if got := out.Header.Get("WWW-Authenticate"); got != want {
		t.Errorf("WWW-Authenticate =\n%s\nwant\n%s", got, want)
	}

	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Links            map[string]struct {
			Href string `json:"href"`
		} `json:"_links"`
	}
	if err := json.Unmarshal(out.Body, &body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "unauthorized" || body.ErrorDescription != "invalid token" {
		t.Errorf("body = %+v", body)
	}
	if got := body.Links["oauth-authorization-server"].Href; got != "https://mcp.example.com/.well-known/oauth-authorization-server" {
		t.Errorf("authorization server link = %q", got)
	}
}

func TestFormat_UnauthorizedDefaultMessage(t *testing.T) {
	f := NewResponseFormatter("2025-03-26", discardLogger())
	out := f.Format(KindUnauthorized, FormatInput{BaseURL: "http://localhost"})

	if !strings.Contains(out.Header.Get("WWW-Authenticate"), `error_description="Authorization required"`) {
		t.Errorf("WWW-Authenticate = %q", out.Header.Get("WWW-Authenticate"))
	}
}

func TestHeaders(t *testing.T) {
	f := NewResponseFormatter("2025-03-26", nil)
	h := f.Headers()

	if len(h) != 12 {
		t.Errorf("header count = %d, want 12", len(h))
	}
	if h.Get("X-MCP-Protocol-Version") != "2025-03-26" || h.Get("X-MCP-Auth-Version") != "2025-03-26" {
		t.Error("protocol version not advertised")
	}
	if h.Get("X-MCP-WebSocket-Supported") != "false" {
		t.Error("websocket must be advertised as unsupported")
	}

	mcp := f.MCPHeaders()
	if len(mcp) != 8 {
		t.Errorf("MCP header count = %d, want 8", len(mcp))
	}
	if mcp.Get("Content-Type") != "" {
		t.Error("MCPHeaders must not include Content-Type")
	}
}

func TestFormatted_Write(t *testing.T) {
	f := NewResponseFormatter("2025-03-26", nil)
	rec := httptest.NewRecorder()

	f.Format(KindParseError, FormatInput{Data: "x"}).Write(rec)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want 400", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}
