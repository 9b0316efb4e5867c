package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/krug-dev/krug-mcp/internal/service"
)

const transportStreamableHTTP = "streamable-http"

type transportInfo struct {
	Supported []string `json:"supported"`
	Current   string   `json:"current"`
}

type endpoints struct {
	Main         string `json:"main"`
	Capabilities string `json:"capabilities"`
}

type serverInfoDoc struct {
	Name            string         `json:"name"`
	Version         string         `json:"version"`
	ProtocolVersion string         `json:"protocol_version"`
	Transport       transportInfo  `json:"transport"`
	Capabilities    map[string]any `json:"capabilities"`
	Endpoints       endpoints      `json:"endpoints"`
}

type capabilityTransport struct {
	Supported          []string `json:"supported"`
	SSESupported       bool     `json:"sse_supported"`
	WebSocketSupported bool     `json:"websocket_supported"`
	HTTPOnly           bool     `json:"http_only"`
}

type capabilitiesDoc struct {
	Server          string              `json:"server"`
	Version         string              `json:"version"`
	ProtocolVersion string              `json:"protocol_version"`
	Transport       capabilityTransport `json:"transport"`
	Endpoints       endpoints           `json:"endpoints"`
	Methods         []string            `json:"methods"`
	AuthRequired    bool                `json:"auth_required"`
	OAuthDiscovery  string              `json:"oauth_discovery"`
	DCRSupported    bool                `json:"dcr_supported"`
}

type pingDoc struct {
	Status             string `json:"status"`
	Server             string `json:"server"`
	Timestamp          string `json:"timestamp"`
	TransportSupported string `json:"transport_supported"`
	Transport          string `json:"transport"`
}

type methodNotAllowedDoc struct {
	Error              string `json:"error"`
	Message            string `json:"message"`
	SupportedTransport string `json:"supported_transport"`
	CorrectMethod      string `json:"correct_method"`
}

type notFoundDoc struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	AttemptedPath string `json:"attempted_path"`
}

func newEndpoints(base string) endpoints {
	return endpoints{Main: base + "/mcp", Capabilities: base + "/mcp/capabilities"}
}

func buildServerInfo(info service.ServerInfo, base string) serverInfoDoc {
	return serverInfoDoc{
		Name:            info.Name,
		Version:         info.Version,
		ProtocolVersion: info.ProtocolVersion,
		Transport: transportInfo{
			Supported: []string{transportStreamableHTTP},
			Current:   transportStreamableHTTP,
		},
		Capabilities: map[string]any{
			"tools":     map[string]any{"listChanged": false},
			"resources": map[string]any{"subscribe": false, "listChanged": false},
			"prompts":   map[string]any{"listChanged": false},
		},
		Endpoints: newEndpoints(base),
	}
}

func buildCapabilities(info service.ServerInfo, base string) capabilitiesDoc {
	return capabilitiesDoc{
		Server:          info.Name,
		Version:         info.Version,
		ProtocolVersion: info.ProtocolVersion,
		Transport: capabilityTransport{
			Supported:    []string{transportStreamableHTTP},
			SSESupported: true,
		},
		Endpoints:      newEndpoints(base),
		Methods:        []string{http.MethodGet, http.MethodPost},
		AuthRequired:   true,
		OAuthDiscovery: base + authServerPath,
	}
}

func buildPing(info service.ServerInfo, now time.Time) pingDoc {
	return pingDoc{
		Status:             "ok",
		Server:             info.Name,
		Timestamp:          now.UTC().Format(time.RFC3339),
		TransportSupported: transportStreamableHTTP,
		Transport:          transportStreamableHTTP,
	}
}

// requestBaseURL derives scheme://host for discovery links. A configured
// override wins over anything the request says.
func requestBaseURL(r *http.Request, override string) string {
	if override != "" {
		return strings.TrimRight(override, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return scheme + "://" + host
}
