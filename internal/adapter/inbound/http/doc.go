// Package http serves the MCP JSON-RPC endpoint over Streamable HTTP.
//
// # Usage
//
//	transport := http.NewHTTPTransport(requests, authn, sessions,
//	    http.WithAddr(":8080"),
//	    http.WithAllowedOrigins([]string{"https://example.com"}),
//	    http.WithLogger(logger),
//	)
//	err := transport.Start(ctx)
//
// # Endpoints
//
//	POST   /mcp               - JSON-RPC request; JSON or SSE response
//	GET    /mcp               - Server info document
//	DELETE /mcp               - Mark the Mcp-Session-Id session for cleanup
//	HEAD   /mcp               - Capability headers only (no auth)
//	OPTIONS *                 - Preflight, always 200 (no auth)
//	GET    /mcp/capabilities  - Capabilities document
//	GET    /mcp/ping          - Liveness document
//	GET    /health            - Component health
//	GET    /metrics           - Prometheus metrics
//
// Any other path under the transport returns a 404 JSON document.
//
// # Streaming
//
// A POST carrying "Accept: text/event-stream" is answered as a short SSE
// stream: a ":ok" comment, one "message" or "error" event, then a
// "complete" event carrying a timestamp. The connection then closes.
//
// # Middleware Chain
//
//  1. MetricsMiddleware - Records duration and status
//  2. RequestIDMiddleware - Assigns X-Request-ID and a request logger
//  3. RealIPMiddleware - Extracts the client IP from proxy headers
//  4. DNSRebindingProtection - Validates the Origin header
//  5. mcpHandler - Authenticates and routes
package http
