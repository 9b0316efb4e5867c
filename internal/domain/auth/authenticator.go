package auth

import (
	"errors"
	"net/http"
	"strings"
)

// Header names consulted for bearer credentials, in priority order.
const (
	ProxyAuthHeader     = "X-MCP-Proxy-Auth"
	AuthorizationHeader = "Authorization"
)

const bearerPrefix = "Bearer "

// RequestInfo is the subset of an inbound request the Authenticator reads.
type RequestInfo struct {
	Header    http.Header
	Method    string
	RequestID string
	RemoteIP  string
}

// Authenticator extracts a bearer credential and verifies it.
type Authenticator struct {
	verifier TokenVerifier
}

// NewAuthenticator creates an Authenticator backed by verifier.
func NewAuthenticator(verifier TokenVerifier) *Authenticator {
	return &Authenticator{verifier: verifier}
}

// Authenticate returns an AuthContext for a verified request, or an
// *AuthenticationError wrapping ErrMissingCredentials or ErrInvalidToken.
func (a *Authenticator) Authenticate(info RequestInfo) (*AuthContext, error) {
	token, ok := ExtractBearerToken(info.Header)
	if !ok {
		return nil, &AuthenticationError{Err: ErrMissingCredentials}
	}

	subject, err := a.verifier.Verify(token)
	if err != nil {
		if !errors.Is(err, ErrInvalidToken) {
			err = ErrInvalidToken
		}
		return nil, &AuthenticationError{Err: err}
	}

	return &AuthContext{
		Authenticated:    true,
		Subject:          subject,
		RequestID:        info.RequestID,
		UserAgent:        info.Header.Get("User-Agent"),
		RemoteIP:         info.RemoteIP,
		AuthType:         AuthTypeAPIKey,
		TransportAttempt: DetectTransport(info.Header),
		RequestMethod:    info.Method,
	}, nil
}

// ExtractBearerToken reads the proxy auth header first, then Authorization.
// The second return value is false when neither carries a "Bearer " value.
func ExtractBearerToken(h http.Header) (string, bool) {
	for _, name := range []string{ProxyAuthHeader, AuthorizationHeader} {
		value := h.Get(name)
		if strings.HasPrefix(value, bearerPrefix) {
			return strings.TrimSpace(strings.TrimPrefix(value, bearerPrefix)), true
		}
	}
	return "", false
}

// DetectTransport returns TransportSSE when Accept includes text/event-stream.
func DetectTransport(h http.Header) string {
	if strings.Contains(h.Get("Accept"), "text/event-stream") {
		return TransportSSE
	}
	return TransportHTTP
}
