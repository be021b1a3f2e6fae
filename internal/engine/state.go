package engine

import (
	"github.com/dshills/promptslot/internal/node"
)

// State is a read-only view of one committed document version.
type State struct {
	view

	version  uint64
	text     string
	registry *node.Registry
}

// Version returns the commit version of the state.
func (s *State) Version() uint64 { return s.version }

// Text returns the plain-text projection of the document.
func (s *State) Text() string { return s.text }

// Root returns a copy of the document tree.
func (s *State) Root() *node.Root { return s.root.Clone() }

// Registry returns the placeholder classes available to the document.
func (s *State) Registry() *node.Registry { return s.registry }

// Selection returns a copy of the committed selection, or nil.
func (s *State) Selection() Selection { return cloneSelection(s.sel) }

// Node looks up a node by key.
func (s *State) Node(key node.Key) (node.Node, bool) { return s.node(key) }

// Placeholders returns every placeholder in document order.
func (s *State) Placeholders() []*node.Placeholder { return s.root.Placeholders() }

// SelectedNodes returns the inline nodes covered by the selection.
func (s *State) SelectedNodes() []node.Inline { return s.selectedNodes() }

// IsSelected reports whether key is the only node of a node selection.
func (s *State) IsSelected(key node.Key) bool { return IsSoleNodeSelection(s.sel, key) }

// RangeContains reports whether a non-collapsed range selection covers key.
func (s *State) RangeContains(key node.Key) bool { return s.rangeContains(key) }

// Adjacent returns the inline node touching a collapsed caret on the given
// side, or nil.
func (s *State) Adjacent(backward bool) node.Inline { return s.adjacent(backward) }
