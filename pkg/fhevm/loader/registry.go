package loader

import (
	"context"
	"sort"
	"sync"
)

const (
	// PrimaryPackage is the preferred locally bundled SDK build.
	PrimaryPackage = "@zama-fhe/relayer-sdk/bundle"
	// FallbackPackage is tried when the primary build is unavailable.
	FallbackPackage = "@zama-fhe/relayer-sdk/web"
)

// Factory produces a locally available SDK module. The returned value is
// checked with Validate before use.
type Factory func(ctx context.Context) (any, error)

// Registry holds the locally available SDK packages by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register makes an SDK package available under name.
// If Register is called twice with the same name or if f is nil, it panics.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f == nil {
		panic("loader: Register factory is nil")
	}
	if _, dup := r.factories[name]; dup {
		panic("loader: Register called twice for package " + name)
	}
	r.factories[name] = f
}

// Lookup returns the factory registered under name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the sorted list of registered package names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// Register makes an SDK package available to the default loader. SDK
// bindings call it from an init function, the way database/sql drivers do.
func Register(name string, f Factory) { defaultRegistry.Register(name, f) }

// Packages returns the names registered with the default registry.
func Packages() []string { return defaultRegistry.Names() }
