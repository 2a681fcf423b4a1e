package schema

import (
	"sync"

	"github.com/pkg/errors"
)

// Registry of operator schemas, keyed by their literal signature.
//
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*FunctionSchema

	// strict registries only return registered schemas.
	strict bool
}

// NewRegistry returns a registry that parses and caches any well-formed literal it is asked about.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*FunctionSchema)}
}

// NewStrictRegistry returns a registry whose Lookup only succeeds for literals previously registered.
func NewStrictRegistry() *Registry {
	r := NewRegistry()
	r.strict = true
	return r
}

// DefaultRegistry is the registry used by default by the symbolic shape bridge.
var DefaultRegistry = NewRegistry()

// Register parses and registers the literal. Registering the same literal twice is a no-op.
func (r *Registry) Register(literal string) (*FunctionSchema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, found := r.schemas[literal]; found {
		return s, nil
	}
	s, err := Parse(literal)
	if err != nil {
		return nil, err
	}
	r.schemas[literal] = s
	return s, nil
}

// Lookup returns the schema for the literal.
//
// For non-strict registries unknown literals are parsed and cached.
func (r *Registry) Lookup(literal string) (*FunctionSchema, error) {
	r.mu.RLock()
	s, found := r.schemas[literal]
	r.mu.RUnlock()
	if found {
		return s, nil
	}
	if r.strict {
		return nil, errors.Errorf("operator schema %q not registered", literal)
	}
	return r.Register(literal)
}

// Len returns the number of schemas in the registry.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}
