package engine

import (
	"fmt"
	"sync"

	"github.com/dshills/promptslot/internal/logging"
	"github.com/dshills/promptslot/internal/node"
)

// Transform runs inside an update over the nodes marked dirty by the last
// round of edits. It may mutate the document through tx; nodes it inserts
// are marked dirty for the next round.
type Transform func(tx *Tx, dirty []node.Key) error

// UpdateInfo describes one committed update.
type UpdateInfo struct {
	Version  uint64
	PrevText string
	Text     string

	// DirtyKeys lists every node marked dirty during the update, in the
	// order the rounds saw them.
	DirtyKeys []node.Key

	// Created and Destroyed list placeholder keys that appeared in or left
	// the document.
	Created   []node.Key
	Destroyed []node.Key

	ContentChanged   bool
	SelectionChanged bool
	Replacements     int
	Tags             []string
}

// TextChanged reports whether the plain-text projection changed.
func (u UpdateInfo) TextChanged() bool { return u.PrevText != u.Text }

// HasTag reports whether the update carried tag.
func (u UpdateInfo) HasTag(tag string) bool {
	for _, t := range u.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Listener is called after an update commits.
type Listener func(UpdateInfo)

type namedTransform struct {
	id   uint64
	name string
	fn   Transform
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// Engine owns the committed document state of one editor.
//
// Updates are serialized; the committed state is swapped atomically so Read
// only waits for the swap, never for a running update. Update functions
// receive the transaction explicitly and must not call Update themselves.
type Engine struct {
	mu sync.Mutex // serializes updates

	stateMu sync.RWMutex
	state   *State

	hookMu     sync.RWMutex
	transforms []namedTransform
	listeners  []listenerEntry
	nextID     uint64

	pendingMu sync.Mutex
	pending   []UpdateInfo

	registry  *node.Registry
	logger    *logging.Logger
	initText  string
	batching  bool
	maxRounds int
}

// New creates an engine holding one empty paragraph, or the WithText content.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry:  node.DefaultRegistry(),
		logger:    logging.Nop(),
		maxRounds: DefaultMaxTransformRounds,
	}
	for _, opt := range opts {
		opt(e)
	}

	tx := newTx(e, node.NewRoot(), nil)
	_ = tx.SetText(e.initText)
	tx.normalize()
	e.state = &State{
		view:     view{root: tx.root, sel: nil},
		text:     tx.root.TextContent(),
		registry: e.registry,
	}
	return e
}

// Registry returns the placeholder classes available to the document.
func (e *Engine) Registry() *node.Registry { return e.registry }

// Logger returns the engine logger.
func (e *Engine) Logger() *logging.Logger { return e.logger }

func (e *Engine) current() *State {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

// State returns the committed state.
func (e *Engine) State() *State { return e.current() }

// Read runs fn against the committed state.
func (e *Engine) Read(fn func(s *State) error) error {
	return fn(e.current())
}

// RootText returns the plain-text projection: paragraph texts joined by
// newlines.
func (e *Engine) RootText() string { return e.current().text }

// Version returns the version of the committed state.
func (e *Engine) Version() uint64 { return e.current().version }

// Selection returns a copy of the committed selection, or nil.
func (e *Engine) Selection() Selection { return e.current().Selection() }

// RegisterTransform adds a transform run by every subsequent update, after
// the transforms registered before it. The returned func removes it.
func (e *Engine) RegisterTransform(name string, fn Transform) (remove func()) {
	e.hookMu.Lock()
	e.nextID++
	id := e.nextID
	e.transforms = append(e.transforms, namedTransform{id: id, name: name, fn: fn})
	e.hookMu.Unlock()

	return func() {
		e.hookMu.Lock()
		defer e.hookMu.Unlock()
		for i, t := range e.transforms {
			if t.id == id {
				e.transforms = append(e.transforms[:i:i], e.transforms[i+1:]...)
				return
			}
		}
	}
}

// OnUpdate adds a listener for committed updates. The returned func removes it.
func (e *Engine) OnUpdate(fn Listener) (remove func()) {
	e.hookMu.Lock()
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, listenerEntry{id: id, fn: fn})
	e.hookMu.Unlock()

	return func() {
		e.hookMu.Lock()
		defer e.hookMu.Unlock()
		for i, l := range e.listeners {
			if l.id == id {
				e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

// Update runs fn against a working copy of the document. When fn returns
// nil the copy is normalized, passed through the registered transforms and
// committed as a new version; otherwise it is discarded and the error
// returned. An update that changes neither content nor selection commits
// nothing.
func (e *Engine) Update(fn func(tx *Tx) error, opts ...UpdateOption) error {
	var cfg updateConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	e.mu.Lock()
	prev := e.current()
	tx := newTx(e, prev.root, prev.sel)
	dirty, err := e.run(tx, fn)
	tx.closed = true
	if err != nil {
		e.mu.Unlock()
		return err
	}

	selChanged := !selectionsEqual(prev.sel, tx.sel)
	if !tx.mutated && !selChanged {
		e.mu.Unlock()
		if cfg.discrete {
			e.Flush()
		}
		return nil
	}

	next := &State{
		view:     view{root: tx.root, sel: tx.sel},
		version:  prev.version + 1,
		text:     tx.root.TextContent(),
		registry: e.registry,
	}
	created, destroyed := diffPlaceholders(prev.root, next.root)
	info := UpdateInfo{
		Version:          next.version,
		PrevText:         prev.text,
		Text:             next.text,
		DirtyKeys:        dirty,
		Created:          created,
		Destroyed:        destroyed,
		ContentChanged:   tx.mutated,
		SelectionChanged: selChanged,
		Replacements:     tx.replaced,
		Tags:             cfg.tags,
	}

	e.stateMu.Lock()
	e.state = next
	e.stateMu.Unlock()
	e.mu.Unlock()

	if e.logger.Enabled(logging.LevelDebug) {
		e.logger.Debug("update committed",
			"version", info.Version,
			"replacements", info.Replacements,
			"created", len(created),
			"destroyed", len(destroyed))
	}
	e.notify(info, cfg.discrete)
	return nil
}

// run applies fn and then alternates normalization and transforms until no
// node is dirty.
func (e *Engine) run(tx *Tx, fn func(tx *Tx) error) ([]node.Key, error) {
	if err := fn(tx); err != nil {
		return nil, err
	}

	e.hookMu.RLock()
	transforms := append([]namedTransform(nil), e.transforms...)
	e.hookMu.RUnlock()

	var all []node.Key
	seen := make(map[node.Key]struct{})
	for round := 0; ; round++ {
		tx.normalize()
		dirty := tx.takeDirty()
		for _, k := range dirty {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				all = append(all, k)
			}
		}
		if len(dirty) == 0 || len(transforms) == 0 {
			return all, nil
		}
		if round >= e.maxRounds {
			return nil, fmt.Errorf("after %d rounds: %w", round, ErrTransformLoop)
		}
		for _, t := range transforms {
			if err := t.fn(tx, dirty); err != nil {
				return nil, fmt.Errorf("transform %s: %w", t.name, err)
			}
		}
	}
}

func (e *Engine) notify(info UpdateInfo, discrete bool) {
	if e.batching && !discrete {
		e.pendingMu.Lock()
		e.pending = append(e.pending, info)
		e.pendingMu.Unlock()
		return
	}
	e.deliver(append(e.takePending(), info))
}

// Flush delivers update notifications held back by WithBatching.
func (e *Engine) Flush() {
	e.deliver(e.takePending())
}

func (e *Engine) takePending() []UpdateInfo {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	out := e.pending
	e.pending = nil
	return out
}

func (e *Engine) deliver(infos []UpdateInfo) {
	if len(infos) == 0 {
		return
	}
	e.hookMu.RLock()
	listeners := append([]listenerEntry(nil), e.listeners...)
	e.hookMu.RUnlock()

	for _, info := range infos {
		for _, l := range listeners {
			l.fn(info)
		}
	}
}

func diffPlaceholders(prev, next *node.Root) (created, destroyed []node.Key) {
	before := make(map[node.Key]struct{})
	for _, p := range prev.Placeholders() {
		before[p.Key()] = struct{}{}
	}
	for _, p := range next.Placeholders() {
		if _, ok := before[p.Key()]; ok {
			delete(before, p.Key())
			continue
		}
		created = append(created, p.Key())
	}
	for _, p := range prev.Placeholders() {
		if _, gone := before[p.Key()]; gone {
			destroyed = append(destroyed, p.Key())
		}
	}
	return created, destroyed
}
