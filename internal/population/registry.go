// Package population tracks the NPCs that are currently active, so that a
// single command can be broadcast to all of them.
package population

import "sync"

// Registry is a set of active members kept in registration order.
// Membership is unique; Register and Unregister are idempotent.
type Registry[T comparable] struct {
	mu      sync.Mutex
	order   []T
	members map[T]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry[T comparable]() *Registry[T] {
	return &Registry[T]{members: make(map[T]struct{})}
}

// Register adds m if absent. It reports whether m was added.
func (r *Registry[T]) Register(m T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[m]; ok {
		return false
	}
	r.members[m] = struct{}{}
	r.order = append(r.order, m)
	return true
}

// Unregister removes m if present. It reports whether m was removed.
func (r *Registry[T]) Unregister(m T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[m]; !ok {
		return false
	}
	delete(r.members, m)
	for i, v := range r.order {
		if v == m {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether m is registered.
func (r *Registry[T]) Contains(m T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[m]
	return ok
}

// Len returns the number of members.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Members returns a copy of the members in registration order.
func (r *Registry[T]) Members() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.order))
	copy(out, r.order)
	return out
}

// Broadcast runs cmd on every member. It iterates a snapshot taken before the
// first call, and runs without holding the lock, so cmd may register or
// unregister members (including the one it was called on).
func (r *Registry[T]) Broadcast(cmd func(T)) int {
	if cmd == nil {
		return 0
	}
	snapshot := r.Members()
	for _, m := range snapshot {
		cmd(m)
	}
	return len(snapshot)
}

// Clear removes every member. Used at simulation teardown.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.members = make(map[T]struct{})
}
