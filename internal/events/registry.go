// Package events provides small typed pub/sub primitives used to publish
// driver telemetry to collaborators.
package events

import (
	"sort"
	"sync"
)

// registry keeps listeners of kind F in registration order and optionally
// the last value notified so late listeners can be primed with it.
type registry[T any, F any] struct {
	mu         sync.RWMutex
	listeners  map[uint64]F
	nextID     uint64
	replayLast bool
	last       T
	hasLast    bool
}

func newRegistry[T any, F any](replayLast bool) *registry[T, F] {
	return &registry[T, F]{
		listeners:  make(map[uint64]F),
		replayLast: replayLast,
	}
}

// add registers f and returns its id plus the value to replay, if any
func (r *registry[T, F]) add(f F) (uint64, T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = f
	return id, r.last, r.replayLast && r.hasLast
}

func (r *registry[T, F]) remove(id uint64) {
	r.mu.Lock()
	delete(r.listeners, id)
	r.mu.Unlock()
}

// snapshot records value as the latest and returns the listeners in registration order
func (r *registry[T, F]) snapshot(value T) []F {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = value
	r.hasLast = true

	ids := make([]uint64, 0, len(r.listeners))
	for id := range r.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]F, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.listeners[id])
	}
	return out
}

func (r *registry[T, F]) latest() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last, r.hasLast
}

func (r *registry[T, F]) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}
