// Package registry maps job names to their live activity handles, so
// UpdateJob and Cancel can resolve a name without the caller holding onto
// the original handle.
package registry

import (
	"sync"

	"gosched/internal/activity"
)

// Registry is a thread-safe name -> *activity.Handle map.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*activity.Handle
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{handles: make(map[string]*activity.Handle)}
}

// Upsert registers h under name, replacing (but not canceling) any previous
// entry. Callers that mean to replace a running job should Cancel the old
// handle themselves before or after Upsert, as their reconciliation policy
// requires.
func (r *Registry) Upsert(name string, h *activity.Handle) {
	if name == "" {
		return
	}
	r.mu.Lock()
	r.handles[name] = h
	r.mu.Unlock()
}

// Lookup returns the handle registered under name, if any.
func (r *Registry) Lookup(name string) (*activity.Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[name]
	return h, ok
}

// Remove deletes name's entry, if the currently registered handle is h
// (guards against removing a newer registration that replaced an older,
// now-terminated one).
func (r *Registry) Remove(name string, h *activity.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.handles[name]; ok && cur == h {
		delete(r.handles, name)
	}
}

// Names returns a snapshot of all currently registered job names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handles))
	for n := range r.handles {
		names = append(names, n)
	}
	return names
}

// Watch starts a goroutine that removes name's entry once h terminates, so
// abnormal exits (task panics) don't leave a dead handle resolvable by
// future UpdateJob/Cancel calls. It does not restart the activity: recovery
// is the host's concern.
func (r *Registry) Watch(name string, h *activity.Handle) {
	if name == "" {
		return
	}
	go func() {
		h.Wait()
		r.Remove(name, h)
	}()
}
