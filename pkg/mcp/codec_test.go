package mcp

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErr    bool
		wantMethod string
		wantNotify bool
		wantID     string
	}{
		{
			name:       "full envelope",
			body:       `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
			wantMethod: "tools/list",
			wantID:     "1",
		},
		{
			name:       "missing version tag is tolerated",
			body:       `{"method":"initialize","params":{"clientInfo":{"name":"x"}},"id":1}`,
			wantMethod: "initialize",
			wantID:     "1",
		},
		{
			name:       "string id is preserved verbatim",
			body:       `{"jsonrpc":"2.0","id":"abc-1","method":"ping"}`,
			wantMethod: "ping",
			wantID:     `"abc-1"`,
		},
		{
			name:       "notification has no id",
			body:       `{"jsonrpc":"2.0","method":"notifications/initialized"}`,
			wantMethod: "notifications/initialized",
			wantNotify: true,
		},
		{name: "empty body", body: "   ", wantErr: true},
		{name: "malformed json", body: `{"jsonrpc":`, wantErr: true},
		{name: "array is not a request", body: `[1,2]`, wantErr: true},
		{name: "scalar is not a request", body: `42`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRequest(%q) expected error", tt.body)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRequest() error = %v", err)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method = %q, want %q", req.Method, tt.wantMethod)
			}
			if req.IsNotification() != tt.wantNotify {
				t.Errorf("IsNotification() = %v, want %v", req.IsNotification(), tt.wantNotify)
			}
			if !tt.wantNotify && string(req.ID) != tt.wantID {
				t.Errorf("ID = %s, want %s", req.ID, tt.wantID)
			}
		})
	}
}

func TestParseRequest_EmptyBodySentinel(t *testing.T) {
	_, err := ParseRequest(nil)
	if !errors.Is(err, ErrEmptyBody) {
		t.Errorf("ParseRequest(nil) error = %v, want ErrEmptyBody", err)
	}
}

func TestParseRequest_InvalidRequestSentinel(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantInvalid bool
	}{
		{"method is a number", `{"jsonrpc":"2.0","id":1,"method":5}`, true},
		{"params is a string", `{"jsonrpc":"2.0","id":1,"method":"ping","params":"x"}`, false},
		{"truncated object", `{"jsonrpc":"2.0",`, false},
		{"array document", `[{"method":"ping"}]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tt.body))
			if got := errors.Is(err, ErrInvalidRequest); got != tt.wantInvalid {
				t.Errorf("errors.Is(%v, ErrInvalidRequest) = %v, want %v", err, got, tt.wantInvalid)
			}
		})
	}
}

func TestRequest_ParamsMap(t *testing.T) {
	req, err := ParseRequest([]byte(`{"method":"initialize","params":{"clientInfo":{"name":"x"}},"id":1}`))
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	params := req.ParamsMap()
	info, ok := params["clientInfo"].(map[string]any)
	if !ok {
		t.Fatalf("clientInfo missing from params: %v", params)
	}
	if info["name"] != "x" {
		t.Errorf("clientInfo.name = %v, want x", info["name"])
	}

	noParams, _ := ParseRequest([]byte(`{"method":"ping","id":2}`))
	if noParams.ParamsMap() != nil {
		t.Error("ParamsMap() should be nil without params")
	}
}

func TestIsClientResponse(t *testing.T) {
	id, err := jsonrpc.MakeID(float64(7))
	if err != nil {
		t.Fatalf("MakeID failed: %v", err)
	}
	resp, err := EncodeMessage(&jsonrpc.Response{ID: id, Result: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("EncodeMessage failed: %v", err)
	}
	if !IsClientResponse(resp) {
		t.Errorf("IsClientResponse(%s) = false, want true", resp)
	}

	req, err := EncodeMessage(&jsonrpc.Request{ID: id, Method: "tools/list"})
	if err != nil {
		t.Fatalf("EncodeMessage failed: %v", err)
	}
	if IsClientResponse(req) {
		t.Errorf("IsClientResponse(%s) = true, want false", req)
	}

	if IsClientResponse([]byte(`not json`)) {
		t.Error("IsClientResponse(garbage) = true, want false")
	}
}

func TestValidateResponse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{name: "result", data: `{"jsonrpc":"2.0","result":{},"id":1}`},
		{name: "error", data: `{"jsonrpc":"2.0","error":{"code":-32603,"message":"x"},"id":1}`},
		{name: "empty", data: "", wantErr: true},
		{name: "whitespace", data: "  \n", wantErr: true},
		{name: "not json", data: "<html>", wantErr: true},
		{name: "no members", data: `{"jsonrpc":"2.0","id":1}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResponse([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResponse_MarshalNullID(t *testing.T) {
	data, err := json.Marshal(NewError(nil, ParseErrorCode, "Parse error", "bad"))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"jsonrpc":"2.0","error":{"code":-32700,"message":"Parse error","data":"bad"},"id":null}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}

func TestNewResult_EchoesID(t *testing.T) {
	resp, err := NewResult(json.RawMessage(`"req-9"`), map[string]any{"ok": true})
	if err != nil {
		t.Fatalf("NewResult() error = %v", err)
	}
	data, _ := json.Marshal(resp)
	want := `{"jsonrpc":"2.0","result":{"ok":true},"id":"req-9"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}
