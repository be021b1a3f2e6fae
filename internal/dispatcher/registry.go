package dispatcher

import (
	"sort"
	"sync"
)

// Priority orders handlers of one command. Higher priorities run first.
type Priority int

// Handler priorities.
const (
	PriorityEditor Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityEditor:
		return "editor"
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return "unknown"
}

type entry struct {
	id       uint64
	priority Priority
	fn       func(payload any) bool
}

// Registry stores handlers by command variant.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Type][]entry // sorted by priority, descending
	seq      uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Type][]entry)}
}

func (r *Registry) add(t Type, p Priority, fn func(any) bool) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	handlers := append(r.handlers[t], entry{id: r.seq, priority: p, fn: fn})
	// Stable so equal priorities keep registration order.
	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].priority > handlers[j].priority
	})
	r.handlers[t] = handlers
	return r.seq
}

func (r *Registry) remove(t Type, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handlers := r.handlers[t]
	for i, e := range handlers {
		if e.id == id {
			handlers = append(handlers[:i:i], handlers[i+1:]...)
			break
		}
	}
	if len(handlers) == 0 {
		delete(r.handlers, t)
		return
	}
	r.handlers[t] = handlers
}

func (r *Registry) get(t Type) []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handlers := r.handlers[t]
	out := make([]entry, len(handlers))
	copy(out, handlers)
	return out
}

// Has reports whether any handler is registered for t.
func (r *Registry) Has(t Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[t]) > 0
}

// Count returns the number of handlers registered for t.
func (r *Registry) Count(t Type) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[t])
}

// List returns every variant with at least one handler, in variant order.
func (r *Registry) List() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]Type, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Clear removes every handler.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[Type][]entry)
}
