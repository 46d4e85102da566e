package styles

import (
	"slices"
	"sync"
)

// Factory builds a fresh Style
type Factory func() Style

// Registry maps style names to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built-in styles
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("vhs", func() Style { return NewVHS() })
	r.Register("film", func() Style { return NewFilm() })
	r.Register("vintage", func() Style { return NewVintage() })
	r.Register("boards", func() Style { return NewBoards() })
	return r
}

// Register adds or replaces a style
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get builds the named style
func (r *Registry) Get(name string) (Style, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return factory(), nil
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names lists the registered styles alphabetically
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

var defaultRegistry = NewRegistry()

// Get builds a built-in style by name
func Get(name string) (Style, error) {
	return defaultRegistry.Get(name)
}

// Names lists the built-in styles
func Names() []string {
	return defaultRegistry.Names()
}

// Has reports whether name is a built-in style
func Has(name string) bool {
	return defaultRegistry.Has(name)
}
