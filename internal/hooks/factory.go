package hooks

import (
	"fmt"
	"sort"
	"sync"

	"github.com/conneroisu/grow/internal/errors"
)

// Factory builds an extension from its podspec options.
type Factory func(options map[string]any) (Extension, error)

// Factories maps extension names, as written in the podspec, to their
// constructors.
type Factories struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewFactories creates an empty factory table.
func NewFactories() *Factories {
	return &Factories{factories: make(map[string]Factory)}
}

// Add registers a factory under name, replacing any previous one.
func (f *Factories) Add(name string, factory Factory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.factories[name] = factory
}

// Names returns the known extension names, sorted.
func (f *Factories) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.factories))
	for name := range f.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs the named extension.
func (f *Factories) Build(name string, options map[string]any) (Extension, error) {
	f.mu.RLock()
	factory, ok := f.factories[name]
	f.mu.RUnlock()
	if !ok {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown extension %q", name))
	}
	return factory(options)
}
