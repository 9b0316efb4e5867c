// Package resource defines readable resources and the provider port that
// resolves them without signalling "not found" through errors.
package resource

import (
	"context"
	"errors"
)

// ErrUnknownResource is reported when no provider recognises a URI.
var ErrUnknownResource = errors.New("unknown resource")

// Descriptor is advertised in resources/list.
type Descriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType"`
}

// Contents is one item of a resources/read result.
type Contents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// Status distinguishes the outcomes of a read.
type Status int

const (
	// StatusFound means Contents is populated.
	StatusFound Status = iota
	// StatusNotFound means the provider does not serve the URI.
	StatusNotFound
	// StatusError means the provider serves the URI but failed; Err is set.
	StatusError
)

// ReadResult is the explicit outcome of Provider.Read.
type ReadResult struct {
	Status   Status
	Contents []Contents
	Err      error
}

// Found builds a successful result.
func Found(contents ...Contents) ReadResult {
	return ReadResult{Status: StatusFound, Contents: contents}
}

// NotFound builds a not-found result.
func NotFound() ReadResult {
	return ReadResult{Status: StatusNotFound}
}

// Failed builds an error result.
func Failed(err error) ReadResult {
	return ReadResult{Status: StatusError, Err: err}
}

// Provider serves a set of resources.
type Provider interface {
	List(ctx context.Context) []Descriptor
	Read(ctx context.Context, uri string) ReadResult
}

// Providers fans out over several providers in order.
type Providers []Provider

// List concatenates every provider's descriptors.
func (ps Providers) List(ctx context.Context) []Descriptor {
	out := make([]Descriptor, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.List(ctx)...)
	}
	return out
}

// Read returns the first result that is not StatusNotFound.
func (ps Providers) Read(ctx context.Context, uri string) ReadResult {
	for _, p := range ps {
		if r := p.Read(ctx, uri); r.Status != StatusNotFound {
			return r
		}
	}
	return NotFound()
}

var _ Provider = Providers(nil)
