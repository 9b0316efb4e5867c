package tool

import (
	"context"
	"fmt"

	"github.com/krug-dev/krug-mcp/internal/domain/auth"
)

// StaticRegistry is a closed, name-keyed catalogue fixed at construction.
// It is safe for concurrent use because it is never mutated after NewStaticRegistry.
type StaticRegistry struct {
	tools map[string]Tool
	descs []Descriptor
}

// NewStaticRegistry builds a registry from tools, preserving their order.
// Empty or duplicate names are rejected.
func NewStaticRegistry(tools ...Tool) (*StaticRegistry, error) {
	r := &StaticRegistry{
		tools: make(map[string]Tool, len(tools)),
		descs: make([]Descriptor, 0, len(tools)),
	}
	for _, t := range tools {
		d := t.Descriptor()
		if d.Name == "" {
			return nil, fmt.Errorf("tool has empty name")
		}
		if _, dup := r.tools[d.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", d.Name)
		}
		d.RiskLevel = Classify(d.Name)
		r.tools[d.Name] = t
		r.descs = append(r.descs, d)
	}
	return r, nil
}

// List returns every registered tool. The caller does not narrow the catalogue.
func (r *StaticRegistry) List(_ context.Context, _ *auth.AuthContext) []Descriptor {
	out := make([]Descriptor, len(r.descs))
	copy(out, r.descs)
	return out
}

// Lookup returns the named tool or ErrToolNotFound.
func (r *StaticRegistry) Lookup(_ context.Context, _ *auth.AuthContext, name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// RiskLevel returns the classification of a registered tool, or LOW if unknown.
func (r *StaticRegistry) RiskLevel(name string) RiskLevel {
	for _, d := range r.descs {
		if d.Name == name {
			return d.RiskLevel
		}
	}
	return RiskLevelLow
}

var _ Registry = (*StaticRegistry)(nil)
