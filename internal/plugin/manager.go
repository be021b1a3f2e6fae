package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Manager registers plugins on one host and tears them down in reverse
// registration order.
type Manager struct {
	mu sync.RWMutex

	host    Host
	plugins map[string]*entry
	order   []string

	watchers map[int]Watcher
	nextID   int

	closed bool
}

type entry struct {
	plugin   Plugin
	state    State
	teardown func()
}

// Watcher observes plugin lifecycle changes. It runs on the goroutine that
// caused the change and must not call back into the Manager.
type Watcher func(ev Change)

// Change describes one plugin lifecycle transition.
type Change struct {
	Kind   ChangeKind
	Plugin string
	Err    error
}

// ChangeKind identifies a lifecycle transition.
type ChangeKind int

// Lifecycle transitions.
const (
	ChangeRegistered ChangeKind = iota
	ChangeUnregistered
	ChangeFailed
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeRegistered:
		return "registered"
	case ChangeUnregistered:
		return "unregistered"
	case ChangeFailed:
		return "failed"
	}
	return "unknown"
}

// NewManager creates a plugin manager for host.
func NewManager(host Host) *Manager {
	return &Manager{
		host:     host,
		plugins:  make(map[string]*entry),
		watchers: make(map[int]Watcher),
	}
}

// Register installs p on the host. A failed registration is recorded with
// StateError and returned.
func (m *Manager) Register(p Plugin) error {
	if p == nil || p.Name() == "" {
		return ErrInvalidPlugin
	}
	name := p.Name()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if e, exists := m.plugins[name]; exists && e.state == StateActive {
		m.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", name, ErrAlreadyRegistered)
	}
	m.mu.Unlock()

	// Register outside the lock; plugins may dispatch or read the engine.
	teardown, err := p.Register(m.host)
	if err != nil {
		err = fmt.Errorf("register plugin %q: %w", name, err)
		m.mu.Lock()
		m.plugins[name] = &entry{plugin: p, state: StateError}
		m.mu.Unlock()
		m.notify(Change{Kind: ChangeFailed, Plugin: name, Err: err})
		return err
	}
	if teardown == nil {
		teardown = func() {}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		teardown()
		return ErrManagerClosed
	}
	if !m.inOrder(name) {
		m.order = append(m.order, name)
	}
	m.plugins[name] = &entry{plugin: p, state: StateActive, teardown: teardown}
	m.mu.Unlock()

	m.notify(Change{Kind: ChangeRegistered, Plugin: name})
	return nil
}

// RegisterAll registers plugins in order, stopping at the first failure.
func (m *Manager) RegisterAll(plugins ...Plugin) error {
	for _, p := range plugins {
		if err := m.Register(p); err != nil {
			return err
		}
	}
	return nil
}

// Unregister tears down the named plugin.
func (m *Manager) Unregister(name string) error {
	m.mu.Lock()
	e, exists := m.plugins[name]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", name, ErrPluginNotFound)
	}
	delete(m.plugins, name)
	m.removeFromOrder(name)
	m.mu.Unlock()

	if e.teardown != nil {
		e.teardown()
	}
	m.notify(Change{Kind: ChangeUnregistered, Plugin: name})
	return nil
}

// Close tears down every plugin in reverse registration order. Later
// registrations fail with ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	names := make([]string, len(m.order))
	for i, name := range m.order {
		names[len(m.order)-1-i] = name
	}
	m.mu.Unlock()

	var errs []error
	for _, name := range names {
		if err := m.Unregister(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// State returns the state of the named plugin.
func (m *Manager) State(name string) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.plugins[name]; ok {
		return e.state
	}
	return StateUnregistered
}

// List returns the names of active plugins in registration order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, 0, len(m.order))
	for _, name := range m.order {
		if e, ok := m.plugins[name]; ok && e.state == StateActive {
			result = append(result, name)
		}
	}
	return result
}

// Count returns the number of active plugins.
func (m *Manager) Count() int {
	return len(m.List())
}

// Watch adds w to the lifecycle observers and returns a func removing it.
func (m *Manager) Watch(w Watcher) func() {
	if w == nil {
		return func() {}
	}
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = w
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

// notify runs the watchers outside the lock. A panicking watcher is logged
// and skipped.
func (m *Manager) notify(ev Change) {
	m.mu.RLock()
	ids := make([]int, 0, len(m.watchers))
	for id := range m.watchers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	ws := make([]Watcher, len(ids))
	for i, id := range ids {
		ws[i] = m.watchers[id]
	}
	m.mu.RUnlock()

	for _, w := range ws {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.host.Logger().Warn("plugin watcher panic", "panic", fmt.Sprint(r))
				}
			}()
			w(ev)
		}()
	}
}

// inOrder expects mu held.
func (m *Manager) inOrder(name string) bool {
	for _, n := range m.order {
		if n == name {
			return true
		}
	}
	return false
}

// removeFromOrder expects mu held.
func (m *Manager) removeFromOrder(name string) {
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
