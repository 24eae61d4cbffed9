package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Registry maps methods to backend factories. A registry holds
// constructors only; every Open call produces a fresh connection.
type Registry struct {
	mu        sync.RWMutex
	factories map[Method]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Method]Factory)}
}

// Register installs the factory for a method, replacing any previous one.
func (r *Registry) Register(method Method, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[method] = factory
}

// Lookup returns the factory registered for a method.
func (r *Registry) Lookup(method Method) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[method]
	return f, ok
}

// Methods returns the registered methods in sorted order.
func (r *Registry) Methods() []Method {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Method, 0, len(r.factories))
	for m := range r.factories {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// Open calls the factory registered for opts.Method.
func (r *Registry) Open(ctx context.Context, opts FactoryOptions) (Dialect, error) {
	factory, ok := r.Lookup(opts.Method)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, opts.Method)
	}
	return factory(ctx, opts)
}
