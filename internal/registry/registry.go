package registry

import (
	"log/slog"
	"sort"

	"github.com/5g-empower/empower-agent/internal/element"
)

// Module is the interface that all element modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Factory constructs a fresh, unattached element.
type Factory func() element.Element

// Registry holds the element classes and the requirements they satisfy for a
// single application instance.
type Registry struct {
	classes  map[string]Factory
	provides map[string]struct{}
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		classes:  make(map[string]Factory),
		provides: make(map[string]struct{}),
	}
}

// RegisterClass makes class available to configurations. It panics when
// the class is already registered.
func (r *Registry) RegisterClass(class string, f Factory) {
	if _, exists := r.classes[class]; exists {
		panic("registry: element class already registered: " + class)
	}
	slog.Debug("Registering element class.", "class", class)
	r.classes[class] = f
}

// Provide records that a configuration's `require "name"` is satisfied.
func (r *Registry) Provide(requirement string) {
	r.provides[requirement] = struct{}{}
}

// Provides reports whether requirement is satisfied.
func (r *Registry) Provides(requirement string) bool {
	_, ok := r.provides[requirement]
	return ok
}

// Lookup returns the factory for class.
func (r *Registry) Lookup(class string) (Factory, bool) {
	f, ok := r.classes[class]
	return f, ok
}

// Classes returns the registered class names in order.
func (r *Registry) Classes() []string {
	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Requirements returns the satisfied requirement names in order.
func (r *Registry) Requirements() []string {
	names := make([]string, 0, len(r.provides))
	for name := range r.provides {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
