package engine

import (
	"slices"

	"github.com/dshills/promptslot/internal/node"
)

// ByteOffset is a byte position inside a text node.
type ByteOffset = int

// PointType distinguishes text and element points.
type PointType uint8

const (
	// PointText addresses a byte offset inside a text node.
	PointText PointType = iota
	// PointElement addresses a child index inside a paragraph.
	PointElement
)

// String returns the point type name.
func (t PointType) String() string {
	if t == PointElement {
		return "element"
	}
	return "text"
}

// Point is one end of a range selection.
type Point struct {
	Key    node.Key
	Offset ByteOffset
	Type   PointType
}

// TextPoint returns a point at offset inside the text node key.
func TextPoint(key node.Key, offset ByteOffset) Point {
	return Point{Key: key, Offset: offset, Type: PointText}
}

// ElementPoint returns a point before child index of the paragraph key.
func ElementPoint(key node.Key, index int) Point {
	return Point{Key: key, Offset: index, Type: PointElement}
}

// Selection is either a *RangeSelection or a *NodeSelection.
type Selection interface {
	// Clone returns an independent copy of the selection.
	Clone() Selection

	isSelection()
}

// RangeSelection is a caret (collapsed) or a span of content.
// Anchor is where the selection started; Focus is where it ends.
type RangeSelection struct {
	Anchor Point
	Focus  Point
	// Format is applied to text typed at a collapsed selection.
	Format node.Format
}

// NewCaret returns a collapsed range selection at p.
func NewCaret(p Point) *RangeSelection {
	return &RangeSelection{Anchor: p, Focus: p}
}

// NewRange returns a range selection from anchor to focus.
func NewRange(anchor, focus Point) *RangeSelection {
	return &RangeSelection{Anchor: anchor, Focus: focus}
}

// IsCollapsed reports whether anchor and focus coincide.
func (s *RangeSelection) IsCollapsed() bool {
	return s.Anchor == s.Focus
}

// Clone implements Selection.
func (s *RangeSelection) Clone() Selection {
	c := *s
	return &c
}

func (*RangeSelection) isSelection() {}

// NodeSelection selects whole nodes, typically a single placeholder.
type NodeSelection struct {
	keys []node.Key
}

// NewNodeSelection returns a selection of keys.
func NewNodeSelection(keys ...node.Key) *NodeSelection {
	return &NodeSelection{keys: append([]node.Key(nil), keys...)}
}

// Keys returns the selected keys.
func (s *NodeSelection) Keys() []node.Key {
	return append([]node.Key(nil), s.keys...)
}

// Has reports whether key is selected.
func (s *NodeSelection) Has(key node.Key) bool {
	return slices.Contains(s.keys, key)
}

// Len returns the number of selected nodes.
func (s *NodeSelection) Len() int {
	return len(s.keys)
}

// Clone implements Selection.
func (s *NodeSelection) Clone() Selection {
	return NewNodeSelection(s.keys...)
}

func (*NodeSelection) isSelection() {}

func (s *NodeSelection) remove(key node.Key) {
	s.keys = slices.DeleteFunc(s.keys, func(k node.Key) bool { return k == key })
}

// IsSoleNodeSelection reports whether sel selects exactly the node key.
func IsSoleNodeSelection(sel Selection, key node.Key) bool {
	ns, ok := sel.(*NodeSelection)
	return ok && ns.Len() == 1 && ns.keys[0] == key
}

func cloneSelection(sel Selection) Selection {
	if sel == nil {
		return nil
	}
	return sel.Clone()
}

func selectionsEqual(a, b Selection) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case *RangeSelection:
		bv, ok := b.(*RangeSelection)
		return ok && *av == *bv
	case *NodeSelection:
		bv, ok := b.(*NodeSelection)
		return ok && slices.Equal(av.keys, bv.keys)
	}
	return false
}

// location is a resolved point: paragraph index, child index and, for text
// points, the byte offset inside that child.
type location struct {
	para   int
	child  int
	offset int
	text   bool
}

func (l location) less(o location) bool {
	if l.para != o.para {
		return l.para < o.para
	}
	if l.child != o.child {
		return l.child < o.child
	}
	return l.offset < o.offset
}
