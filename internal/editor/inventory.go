package editor

import (
	"fmt"

	"github.com/dshills/promptslot/internal/engine"
	"github.com/dshills/promptslot/internal/node"
	"github.com/dshills/promptslot/internal/selection"
)

// PlaceholderInfo describes one placeholder of the document.
type PlaceholderInfo struct {
	Key       node.Key  `json:"key"`
	Kind      node.Kind `json:"kind"`
	Text      string    `json:"text"`
	Paragraph int       `json:"paragraph"`
	Ref       string    `json:"ref"`
}

// Snapshot is a consistent view of one document version.
type Snapshot struct {
	Version      uint64            `json:"version"`
	Text         string            `json:"text"`
	Placeholders []PlaceholderInfo `json:"placeholders"`
	Selected     []node.Key        `json:"selected,omitempty"`
}

// Snapshot returns the current version, text, placeholders and selected
// node keys.
func (ed *Editor) Snapshot() Snapshot {
	s := ed.engine.State()
	snap := Snapshot{
		Version:      s.Version(),
		Text:         s.Text(),
		Placeholders: inventory(s),
	}
	for _, n := range s.SelectedNodes() {
		snap.Selected = append(snap.Selected, n.Key())
	}
	return snap
}

// Placeholders returns the placeholders in document order.
func (ed *Editor) Placeholders() []PlaceholderInfo {
	return inventory(ed.engine.State())
}

func inventory(s *engine.State) []PlaceholderInfo {
	out := []PlaceholderInfo{}
	for i, p := range s.Root().Paragraphs() {
		for _, c := range p.Children() {
			ph, ok := c.(*node.Placeholder)
			if !ok {
				continue
			}
			out = append(out, PlaceholderInfo{
				Key:       ph.Key(),
				Kind:      ph.Kind(),
				Text:      ph.TextContent(),
				Paragraph: i,
				Ref:       selection.RefFor(ph.Key()),
			})
		}
	}
	return out
}

// SetKindCallbacks replaces the decoration callbacks of a kind.
func (ed *Editor) SetKindCallbacks(kind node.Kind, cb node.Callbacks) {
	ed.callbacks.setKind(kind, cb)
}

// SetNodeCallbacks overrides decoration callbacks for one placeholder. The
// entry is dropped when the placeholder leaves the document.
func (ed *Editor) SetNodeCallbacks(key node.Key, cb node.Callbacks) {
	ed.callbacks.setKey(key, cb)
}

// Decorate describes one placeholder to the host renderer.
func (ed *Editor) Decorate(key node.Key) (node.Decoration, error) {
	s := ed.engine.State()
	n, ok := s.Node(key)
	if !ok {
		return node.Decoration{}, fmt.Errorf("decorate %s: %w", key, engine.ErrNodeNotFound)
	}
	p, ok := n.(*node.Placeholder)
	if !ok {
		return node.Decoration{}, fmt.Errorf("decorate %s: %w", key, ErrNotPlaceholder)
	}
	return ed.registry.Decorate(p, ed.decorateEnv(s))
}

// Decorations describes every placeholder in document order.
func (ed *Editor) Decorations() ([]node.Decoration, error) {
	s := ed.engine.State()
	env := ed.decorateEnv(s)
	var out []node.Decoration
	for _, p := range s.Placeholders() {
		d, err := ed.registry.Decorate(p, env)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (ed *Editor) decorateEnv(s *engine.State) node.DecorateEnv {
	return node.DecorateEnv{
		Scope:     ed.scope,
		Callbacks: ed.callbacks.resolve,
		Selected:  s.IsSelected,
		Logger:    ed.logger,
	}
}

// Export serializes the document as JSON.
func (ed *Editor) Export() ([]byte, error) {
	return ed.registry.MarshalDocument(ed.engine.State().Root())
}
