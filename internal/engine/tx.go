package engine

import (
	"github.com/dshills/promptslot/internal/node"
)

// Tx is a mutable working copy of the document passed to update functions.
// It must not be retained after the update function returns.
type Tx struct {
	view

	e        *Engine
	dirty    map[node.Key]struct{}
	mutated  bool
	closed   bool
	replaced int
}

func newTx(e *Engine, root *node.Root, sel Selection) *Tx {
	return &Tx{
		view:  view{root: root.Clone(), sel: cloneSelection(sel)},
		e:     e,
		dirty: make(map[node.Key]struct{}),
	}
}

// Root returns the working root. Callers must mutate it only through Tx
// methods so that selection points and dirty marks stay consistent.
func (tx *Tx) Root() *node.Root { return tx.root }

// Registry returns the placeholder classes available to the document.
func (tx *Tx) Registry() *node.Registry { return tx.e.registry }

// Text returns the current projection of the working root.
func (tx *Tx) Text() string { return tx.root.TextContent() }

// Node looks up a node by key in the working root.
func (tx *Tx) Node(key node.Key) (node.Node, bool) { return tx.node(key) }

// Locate returns the paragraph and child index of an inline node.
func (tx *Tx) Locate(key node.Key) (p *node.Paragraph, index int, ok bool) {
	p, index, _, ok = tx.root.Find(key)
	return p, index, ok
}

// MarkDirty flags a node for the transforms of this update.
func (tx *Tx) MarkDirty(key node.Key) {
	tx.dirty[key] = struct{}{}
}

// IsDirty reports whether key is flagged for the transforms of this update.
func (tx *Tx) IsDirty(key node.Key) bool {
	_, ok := tx.dirty[key]
	return ok
}

// Replacements returns how many nodes transforms reported replacing so far.
func (tx *Tx) Replacements() int { return tx.replaced }

// CountReplacements records n transform replacements.
func (tx *Tx) CountReplacements(n int) { tx.replaced += n }

// takeDirty returns the live dirty keys in document order and resets the set.
func (tx *Tx) takeDirty() []node.Key {
	if len(tx.dirty) == 0 {
		return nil
	}
	var out []node.Key
	tx.root.Walk(func(_ *node.Paragraph, _ int, n node.Inline) bool {
		if _, ok := tx.dirty[n.Key()]; ok {
			out = append(out, n.Key())
		}
		return true
	})
	clear(tx.dirty)
	return out
}

func (tx *Tx) check() error {
	if tx.closed {
		return ErrTxClosed
	}
	return nil
}

// mapPoints rewrites the points of a range selection.
func (tx *Tx) mapPoints(fn func(Point) Point) {
	if s, ok := tx.sel.(*RangeSelection); ok {
		s.Anchor = fn(s.Anchor)
		s.Focus = fn(s.Focus)
	}
}

// replaceRange swaps children [from, to) of paragraph pi for nodes. Text
// points inside removed nodes go through remap when given, otherwise they
// land in front of the first inserted node. Element points of the paragraph
// shift with the change.
func (tx *Tx) replaceRange(pi, from, to int, nodes []node.Inline, remap func(Point) Point) {
	p := tx.root.Paragraph(pi)
	removed := make(map[node.Key]struct{}, to-from)
	for k := from; k < to; k++ {
		removed[p.Child(k).Key()] = struct{}{}
	}

	tail := p.Truncate(from)
	p.Append(nodes...)
	if to-from < len(tail) {
		p.Append(tail[to-from:]...)
	}

	pk := p.Key()
	delta := len(nodes) - (to - from)
	tx.mapPoints(func(pt Point) Point {
		switch pt.Type {
		case PointText:
			if _, gone := removed[pt.Key]; gone {
				if remap != nil {
					return remap(pt)
				}
				return ElementPoint(pk, from)
			}
		case PointElement:
			if pt.Key != pk || pt.Offset <= from {
				return pt
			}
			if pt.Offset < to {
				pt.Offset = from
			} else {
				pt.Offset += delta
			}
		}
		return pt
	})

	if ns, ok := tx.sel.(*NodeSelection); ok {
		kept := make(map[node.Key]struct{}, len(nodes))
		for _, n := range nodes {
			kept[n.Key()] = struct{}{}
		}
		for k := range removed {
			if _, still := kept[k]; !still {
				ns.remove(k)
			}
		}
		if ns.Len() == 0 {
			tx.sel = NewCaret(ElementPoint(pk, from))
		}
	}

	for _, n := range nodes {
		tx.dirty[n.Key()] = struct{}{}
	}
	tx.mutated = true
}

// splitAt makes l fall on a child boundary and returns the index of the
// child following it. grew reports whether a text node was split in two.
func (tx *Tx) splitAt(l location) (index int, grew bool) {
	if !l.text {
		return l.child, false
	}
	p := tx.root.Paragraph(l.para)
	t := p.Child(l.child).(*node.Text)
	switch l.offset {
	case 0:
		return l.child, false
	case t.Len():
		return l.child + 1, false
	}

	o := l.offset
	left := t.WithText(t.TextContent()[:o])
	right := node.NewText(t.TextContent()[o:], t.Format())
	tx.replaceRange(l.para, l.child, l.child+1, []node.Inline{left, right}, func(pt Point) Point {
		if pt.Offset <= o {
			return TextPoint(left.Key(), pt.Offset)
		}
		return TextPoint(right.Key(), pt.Offset-o)
	})
	return l.child + 1, true
}

// splitParagraph moves children from index i of paragraph pi into a new
// paragraph inserted after it.
func (tx *Tx) splitParagraph(pi, i int) *node.Paragraph {
	p := tx.root.Paragraph(pi)
	next := node.NewParagraph(p.Truncate(i)...)
	tx.root.Insert(pi+1, next)

	pk := p.Key()
	tx.mapPoints(func(pt Point) Point {
		if pt.Type == PointElement && pt.Key == pk && pt.Offset > i {
			return ElementPoint(next.Key(), pt.Offset-i)
		}
		return pt
	})
	tx.mutated = true
	return next
}

// mergeParagraphs appends the children of paragraph pi+1 to paragraph pi
// and removes pi+1.
func (tx *Tx) mergeParagraphs(pi int) {
	p := tx.root.Paragraph(pi)
	next := tx.root.Paragraph(pi + 1)
	if next == nil {
		return
	}
	n := p.Len()
	p.Append(next.Children()...)
	tx.root.RemoveAt(pi + 1)

	nk := next.Key()
	tx.mapPoints(func(pt Point) Point {
		if pt.Type == PointElement && pt.Key == nk {
			return ElementPoint(p.Key(), pt.Offset+n)
		}
		return pt
	})
	for _, c := range next.Children() {
		tx.dirty[c.Key()] = struct{}{}
	}
	tx.mutated = true
}

// removeParagraph drops paragraph pi and everything in it. Points that
// referenced it are repaired by normalize.
func (tx *Tx) removeParagraph(pi int) {
	p := tx.root.Paragraph(pi)
	if p == nil {
		return
	}
	if ns, ok := tx.sel.(*NodeSelection); ok {
		for _, c := range p.Children() {
			ns.remove(c.Key())
		}
	}
	tx.root.RemoveAt(pi)
	tx.mutated = true
}

// deleteRange removes everything between start and end and leaves a caret
// at the join.
func (tx *Tx) deleteRange(start, end location, format node.Format) {
	if start == end {
		return
	}

	ie, _ := tx.splitAt(end)
	is, grew := tx.splitAt(start)
	if grew && start.para == end.para {
		ie++
	}

	if start.para == end.para {
		tx.replaceRange(start.para, is, ie, nil, nil)
	} else {
		tx.replaceRange(end.para, 0, ie, nil, nil)
		tx.replaceRange(start.para, is, tx.root.Paragraph(start.para).Len(), nil, nil)
		for pi := end.para - 1; pi > start.para; pi-- {
			tx.removeParagraph(pi)
		}
		tx.mergeParagraphs(start.para)
	}

	caret := tx.pointAt(start.para, is)
	tx.sel = &RangeSelection{Anchor: caret, Focus: caret, Format: format}
}
