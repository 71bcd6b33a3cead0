package analysis

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// ErrUnknownModule indicates no factory is registered for a tag.
var ErrUnknownModule = errors.New("unknown analysis module")

// Factory builds a fresh module for one run.
type Factory func(Settings) Module

// Registry maps module tags to their factories.
type Registry struct {
	factories map[Tag]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Tag]Factory)}
}

// DefaultRegistry returns a registry holding the built-in modules.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TagBaseQuality, func(s Settings) Module { return NewBaseQuality(s) })
	r.Register(TagReadQuality, func(s Settings) Module { return NewReadQuality(s) })
	r.Register(TagMappingQuality, func(s Settings) Module { return NewMappingQuality(s) })
	r.Register(TagNContent, func(s Settings) Module { return NewNContent(s) })
	return r
}

// Register adds a factory. A later registration for the same tag replaces the earlier one.
func (r *Registry) Register(tag Tag, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[tag] = factory
}

// Tags returns the registered tags in order.
func (r *Registry) Tags() []Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// Build creates one module per tag, in the order given.
// With no tags every registered module is built.
func (r *Registry) Build(settings Settings, tags ...Tag) ([]Module, error) {
	if len(tags) == 0 {
		tags = r.Tags()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	modules := make([]Module, 0, len(tags))
	for _, tag := range tags {
		factory, ok := r.factories[tag]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModule, tag)
		}
		modules = append(modules, factory(settings))
	}
	return modules, nil
}

// AllCacheable reports whether every module can be cached.
func AllCacheable(modules []Module) bool {
	for _, m := range modules {
		if _, ok := m.(Cacheable); !ok {
			return false
		}
	}
	return true
}
