package widget

import "sync"

// Handle identifies a mounted bridge. Handles are never reused within a
// registry's lifetime, so a stale handle resolves to nothing instead of a
// different instance.
type Handle uint64

// Registry tracks every bridge mounted on a page. Multiple widgets can
// coexist; each holds its own tokens and state.
type Registry struct {
	mu      sync.Mutex
	next    Handle
	bridges map[Handle]*Bridge
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{bridges: make(map[Handle]*Bridge)}
}

// Mount registers a bridge and returns its handle.
func (r *Registry) Mount(b *Bridge) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	h := r.next
	r.bridges[h] = b
	return h
}

// Lookup resolves a handle; ok is false for unmounted or stale handles.
func (r *Registry) Lookup(h Handle) (*Bridge, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bridges[h]
	return b, ok
}

// Unmount removes a bridge. Unmounting an unknown handle is a no-op.
func (r *Registry) Unmount(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bridges, h)
}

// Len reports how many bridges are mounted.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bridges)
}
