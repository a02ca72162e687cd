// Package chat holds the in-memory state shared by every chat connection:
// the set of claimed participant names and the broadcast bus.
package chat

import "sync"

// Registry tracks which participant names are currently in use. All access
// is serialized by one mutex held only across the map operation itself,
// never across network or disk I/O.
type Registry struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// TryClaim atomically checks and inserts name. It returns false and leaves
// the set unchanged if the name is already claimed.
func (r *Registry) TryClaim(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.names[name]; taken {
		return false
	}
	r.names[name] = struct{}{}
	return true
}

// Release removes name from the registry. Releasing a name that was never
// claimed is a no-op.
func (r *Registry) Release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.names, name)
}

// Count returns the number of currently claimed names.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}
