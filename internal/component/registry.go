package component

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs a component instance from the constructor arguments
// declared in the mission binding.
type Factory func(args map[string]any) (Component, error)

// Registry maps symbolic component identifiers (namespace.name) to
// factories. It is used by both the primary pipeline and the recovery
// pipeline and is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty component registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given identifier. Registering an
// identifier twice or with a nil factory is an error.
func (r *Registry) Register(id string, factory Factory) error {
	if id == "" {
		return NewError(ErrCodeInvalidArgs, "component identifier cannot be empty")
	}
	if factory == nil {
		return NewError(ErrCodeInvalidArgs, fmt.Sprintf("factory for %q cannot be nil", id))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[id]; exists {
		return NewError(ErrCodeAlreadyRegistered, fmt.Sprintf("component %q is already registered", id))
	}
	r.factories[id] = factory
	return nil
}

// Construct instantiates the component registered under id. An unregistered
// identifier yields an unknown-component error. A factory that returns an
// error or panics yields a construction error wrapping the cause; the
// registry itself is unaffected and the caller decides whether the failure
// is a recoverable stage-bind failure.
func (r *Registry) Construct(id string, args map[string]any) (c Component, err error) {
	r.mu.RLock()
	factory, ok := r.factories[id]
	r.mu.RUnlock()

	if !ok {
		return nil, NewUnknownComponentError(id)
	}

	defer func() {
		if rec := recover(); rec != nil {
			c = nil
			err = NewConstructionError(id, fmt.Errorf("factory panicked: %v", rec))
		}
	}()

	c, ferr := factory(args)
	if ferr != nil {
		return nil, NewConstructionError(id, ferr)
	}
	if c == nil {
		return nil, NewConstructionError(id, fmt.Errorf("factory returned nil component"))
	}
	return c, nil
}

// Identifiers returns all registered identifiers in sorted order.
func (r *Registry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
