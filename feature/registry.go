package feature

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/lifemesh/core"
)

// ErrDuplicate is returned when a registry already holds a definition with the same name.
var ErrDuplicate = errors.New("duplicate feature name")

// Named is implemented by every feature definition.
type Named interface {
	FeatureName() string
}

// Registry is a name-keyed collection that preserves registration order.
// It is read-only once the owning agent has been resolved; concurrent reads
// are safe.
type Registry[T Named] struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]T
}

// NewRegistry creates a registry holding defs.
func NewRegistry[T Named](defs ...T) (*Registry[T], error) {
	r := &Registry[T]{byName: make(map[string]T, len(defs))}
	if err := r.Register(defs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Register merges defs into the registry. If any name is already present,
// or repeated within defs, nothing is registered.
func (r *Registry[T]) Register(defs ...T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		name := d.FeatureName()
		if name == "" {
			return core.NewError(core.KindValidation, "registry.register", "feature name must not be empty")
		}
		_, exists := r.byName[name]
		_, repeated := seen[name]
		if exists || repeated {
			return core.WrapError(core.KindValidation, "registry.register", fmt.Errorf("%w: %q", ErrDuplicate, name))
		}
		seen[name] = struct{}{}
	}

	for _, d := range defs {
		r.byName[d.FeatureName()] = d
		r.order = append(r.order, d.FeatureName())
	}
	return nil
}

// Get returns the definition registered under name.
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// All returns the definitions in registration order.
func (r *Registry[T]) All() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, len(r.order))
	for i, n := range r.order {
		out[i] = r.byName[n]
	}
	return out
}

// Names returns the registered names in registration order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of definitions.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
