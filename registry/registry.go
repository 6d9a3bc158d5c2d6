package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Registry resolves component names to module identifiers. Instances are
// created with NewRegistry and passed to the components that need identity
// resolution.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]ModuleIdentifier
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		modules: make(map[string]ModuleIdentifier),
	}
}

// Register adds an identifier under its component name. Registering a name
// twice is an error; re-registration requires an explicit Unregister first.
func (r *Registry) Register(id ModuleIdentifier) error {
	if id.ComponentName == "" {
		return fmt.Errorf("cannot register identifier without component name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.modules[id.ComponentName]; ok {
		return fmt.Errorf("component %q already registered as %s", id.ComponentName, existing)
	}
	r.modules[id.ComponentName] = id
	return nil
}

// Unregister removes a component by name. Unknown names are a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.modules, name)
}

// Resolve looks up the identifier registered under the given component name.
func (r *Registry) Resolve(name string) (ModuleIdentifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.modules[name]
	return id, ok
}

// List returns all registered identifiers ordered by component name.
func (r *Registry) List() []ModuleIdentifier {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ModuleIdentifier, 0, len(r.modules))
	for _, id := range r.modules {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].ComponentName < ids[j].ComponentName
	})
	return ids
}
