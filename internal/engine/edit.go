package engine

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dshills/promptslot/internal/node"
)

// Selection returns a copy of the working selection, or nil.
func (tx *Tx) Selection() Selection { return cloneSelection(tx.sel) }

// SetSelection replaces the working selection. Every point or key must
// reference a live node.
func (tx *Tx) SetSelection(sel Selection) error {
	if err := tx.check(); err != nil {
		return err
	}
	switch s := sel.(type) {
	case nil:
	case *RangeSelection:
		if _, _, err := tx.rangeBounds(s); err != nil {
			return err
		}
	case *NodeSelection:
		for _, k := range s.keys {
			if _, _, _, ok := tx.root.Find(k); !ok {
				return fmt.Errorf("select %s: %w", k, ErrNodeNotFound)
			}
		}
	}
	tx.sel = cloneSelection(sel)
	return nil
}

// SelectEnd places a collapsed caret at the end of the document.
func (tx *Tx) SelectEnd() {
	tx.sel = NewCaret(tx.endPoint())
}

// SelectNode replaces the selection with a node selection of key.
func (tx *Tx) SelectNode(key node.Key) error {
	if err := tx.check(); err != nil {
		return err
	}
	if _, _, _, ok := tx.root.Find(key); !ok {
		return fmt.Errorf("select %s: %w", key, ErrNodeNotFound)
	}
	tx.sel = NewNodeSelection(key)
	return nil
}

// ClearSelection removes the selection.
func (tx *Tx) ClearSelection() { tx.sel = nil }

// SelectedNodes returns the inline nodes covered by the selection.
func (tx *Tx) SelectedNodes() []node.Inline { return tx.selectedNodes() }

// IsSelected reports whether key is the only node of a node selection.
func (tx *Tx) IsSelected(key node.Key) bool { return IsSoleNodeSelection(tx.sel, key) }

// RangeContains reports whether a non-collapsed range selection covers key.
func (tx *Tx) RangeContains(key node.Key) bool { return tx.rangeContains(key) }

// Adjacent returns the inline node touching a collapsed caret on the given
// side, or nil.
func (tx *Tx) Adjacent(backward bool) node.Inline { return tx.adjacent(backward) }

// CreateText returns a new unattached text node.
func (tx *Tx) CreateText(text string) *node.Text {
	return node.NewText(text, 0)
}

// CreatePlaceholder returns a new unattached placeholder of kind.
func (tx *Tx) CreatePlaceholder(kind node.Kind, payload node.Payload) (*node.Placeholder, error) {
	return tx.e.registry.Create(kind, payload)
}

// caret collapses the selection to an insertion point and resolves it. A
// missing selection selects the end of the document, a node selection moves
// the caret after its last node and a range is deleted first.
func (tx *Tx) caret() (location, node.Format, error) {
	switch s := tx.sel.(type) {
	case nil:
		tx.SelectEnd()
	case *NodeSelection:
		nodes := tx.selectedNodes()
		if len(nodes) == 0 {
			tx.SelectEnd()
			break
		}
		p, idx, _, _ := tx.root.Find(nodes[len(nodes)-1].Key())
		tx.sel = NewCaret(tx.pointAt(tx.root.IndexOf(p.Key()), idx+1))
	case *RangeSelection:
		if !s.IsCollapsed() {
			start, end, err := tx.rangeBounds(s)
			if err != nil {
				return location{}, 0, err
			}
			tx.deleteRange(start, end, s.Format)
		}
	}
	s := tx.sel.(*RangeSelection)
	l, err := tx.resolve(s.Anchor)
	return l, s.Format, err
}

func (tx *Tx) setCaret(pt Point, format node.Format) {
	tx.sel = &RangeSelection{Anchor: pt, Focus: pt, Format: format}
}

// InsertNodes inserts inline nodes at the selection and leaves a collapsed
// caret after the last of them.
func (tx *Tx) InsertNodes(nodes ...node.Inline) error {
	if err := tx.check(); err != nil {
		return err
	}
	for _, n := range nodes {
		if _, _, _, ok := tx.root.Find(n.Key()); ok {
			return fmt.Errorf("insert %s: %w", n.Key(), ErrNodeExists)
		}
	}
	l, format, err := tx.caret()
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	i, _ := tx.splitAt(l)
	tx.replaceRange(l.para, i, i, nodes, nil)
	tx.setCaret(tx.pointAt(l.para, i+len(nodes)), format)
	return nil
}

// InsertText inserts text at the selection. Newlines start new paragraphs.
func (tx *Tx) InsertText(text string) error {
	if err := tx.check(); err != nil {
		return err
	}
	for i, line := range strings.Split(normalizeNewlines(text), "\n") {
		if i > 0 {
			if err := tx.InsertParagraph(); err != nil {
				return err
			}
		}
		if line == "" {
			continue
		}
		format := node.Format(0)
		if s, ok := tx.sel.(*RangeSelection); ok {
			format = s.Format
		}
		if err := tx.InsertNodes(node.NewText(line, format)); err != nil {
			return err
		}
	}
	return nil
}

// InsertParagraph splits the paragraph at the selection.
func (tx *Tx) InsertParagraph() error {
	if err := tx.check(); err != nil {
		return err
	}
	l, format, err := tx.caret()
	if err != nil {
		return fmt.Errorf("insert paragraph: %w", err)
	}
	i, _ := tx.splitAt(l)
	tx.splitParagraph(l.para, i)
	tx.setCaret(tx.pointAt(l.para+1, 0), format)
	return nil
}

// DeleteSelection removes the selected nodes or range. A collapsed caret
// deletes nothing.
func (tx *Tx) DeleteSelection() error {
	if err := tx.check(); err != nil {
		return err
	}
	switch s := tx.sel.(type) {
	case *NodeSelection:
		for _, n := range tx.selectedNodes() {
			if err := tx.Remove(n.Key()); err != nil {
				return err
			}
		}
	case *RangeSelection:
		if s.IsCollapsed() {
			return nil
		}
		start, end, err := tx.rangeBounds(s)
		if err != nil {
			return fmt.Errorf("delete selection: %w", err)
		}
		tx.deleteRange(start, end, s.Format)
	}
	return nil
}

// DeleteCharacter deletes one character, or one placeholder, next to a
// collapsed caret. At a paragraph edge it joins the adjacent paragraph.
// Non-collapsed selections are deleted as a whole.
func (tx *Tx) DeleteCharacter(backward bool) error {
	if err := tx.check(); err != nil {
		return err
	}
	s, ok := tx.sel.(*RangeSelection)
	if !ok || !s.IsCollapsed() {
		return tx.DeleteSelection()
	}
	l, err := tx.resolve(s.Anchor)
	if err != nil {
		return fmt.Errorf("delete character: %w", err)
	}
	p := tx.root.Paragraph(l.para)

	backGap, fwdGap := l.child, l.child
	if l.text {
		t := p.Child(l.child).(*node.Text)
		text := t.TextContent()
		switch {
		case backward && l.offset > 0:
			_, size := utf8.DecodeLastRuneInString(text[:l.offset])
			from := l
			from.offset -= size
			tx.deleteRange(from, l, s.Format)
			return nil
		case !backward && l.offset < t.Len():
			_, size := utf8.DecodeRuneInString(text[l.offset:])
			to := l
			to.offset += size
			tx.deleteRange(l, to, s.Format)
			return nil
		}
		if l.offset > 0 {
			backGap = l.child + 1
		}
		if l.offset == t.Len() {
			fwdGap = l.child + 1
		}
	}

	if backward {
		if backGap == 0 {
			if l.para > 0 {
				n := tx.root.Paragraph(l.para - 1).Len()
				tx.mergeParagraphs(l.para - 1)
				tx.setCaret(tx.pointAt(l.para-1, n), s.Format)
			}
			return nil
		}
		return tx.deleteChildEdge(l.para, backGap-1, true, s.Format)
	}

	if fwdGap >= p.Len() {
		if l.para+1 < tx.root.Len() {
			tx.mergeParagraphs(l.para)
			tx.setCaret(tx.pointAt(l.para, fwdGap), s.Format)
		}
		return nil
	}
	return tx.deleteChildEdge(l.para, fwdGap, false, s.Format)
}

// deleteChildEdge removes the last (backward) or first character of the
// text child k, or the whole child when it is a placeholder.
func (tx *Tx) deleteChildEdge(pi, k int, backward bool, format node.Format) error {
	child := tx.root.Paragraph(pi).Child(k)
	t, ok := child.(*node.Text)
	if !ok {
		tx.replaceRange(pi, k, k+1, nil, nil)
		tx.setCaret(tx.pointAt(pi, k), format)
		return nil
	}
	text := t.TextContent()
	if text == "" {
		return nil
	}
	if backward {
		_, size := utf8.DecodeLastRuneInString(text)
		tx.deleteRange(location{para: pi, child: k, offset: len(text) - size, text: true},
			location{para: pi, child: k, offset: len(text), text: true}, format)
		return nil
	}
	_, size := utf8.DecodeRuneInString(text)
	tx.deleteRange(location{para: pi, child: k, text: true},
		location{para: pi, child: k, offset: size, text: true}, format)
	return nil
}

// Remove detaches the node with key. Removing a paragraph removes its
// children with it.
func (tx *Tx) Remove(key node.Key) error {
	if err := tx.check(); err != nil {
		return err
	}
	if pi := tx.root.IndexOf(key); pi >= 0 {
		tx.removeParagraph(pi)
		return nil
	}
	p, idx, _, ok := tx.root.Find(key)
	if !ok {
		return fmt.Errorf("remove %s: %w", key, ErrNodeNotFound)
	}
	tx.replaceRange(tx.root.IndexOf(p.Key()), idx, idx+1, nil, nil)
	return nil
}

// Replace substitutes the inline node key with nodes. Selection points
// inside a replaced text node move to the equivalent position among the
// new nodes.
func (tx *Tx) Replace(key node.Key, nodes ...node.Inline) error {
	if err := tx.check(); err != nil {
		return err
	}
	p, idx, n, ok := tx.root.Find(key)
	if !ok {
		return fmt.Errorf("replace %s: %w", key, ErrNodeNotFound)
	}
	var remap func(Point) Point
	if _, isText := n.(*node.Text); isText && len(nodes) > 0 {
		remap = segmentRemap(p.Key(), idx, nodes)
	}
	tx.replaceRange(tx.root.IndexOf(p.Key()), idx, idx+1, nodes, remap)
	return nil
}

// segmentRemap maps a byte offset inside a replaced text node onto the
// concatenated projections of its replacement segments.
func segmentRemap(pk node.Key, idx int, segs []node.Inline) func(Point) Point {
	return func(pt Point) Point {
		start := 0
		for j, n := range segs {
			end := start + len(n.TextContent())
			if t, ok := n.(*node.Text); ok && pt.Offset >= start && pt.Offset <= end {
				return TextPoint(t.Key(), pt.Offset-start)
			}
			if pt.Offset < end {
				if pt.Offset <= start {
					return ElementPoint(pk, idx+j)
				}
				return ElementPoint(pk, idx+j+1)
			}
			start = end
		}
		return ElementPoint(pk, idx+len(segs))
	}
}

// SetPayload swaps the payload of placeholder key, keeping its key and
// format.
func (tx *Tx) SetPayload(key node.Key, payload node.Payload) error {
	if err := tx.check(); err != nil {
		return err
	}
	p, idx, n, ok := tx.root.Find(key)
	if !ok {
		return fmt.Errorf("set payload %s: %w", key, ErrNodeNotFound)
	}
	ph, ok := n.(*node.Placeholder)
	if !ok {
		return fmt.Errorf("set payload %s: %w", key, ErrNotPlaceholder)
	}
	next, err := tx.e.registry.WithPayload(ph, payload)
	if err != nil {
		return fmt.Errorf("set payload %s: %w", key, err)
	}
	tx.replaceRange(tx.root.IndexOf(p.Key()), idx, idx+1, []node.Inline{next}, nil)
	return nil
}

// SetText replaces the whole document with one paragraph per line of text
// and clears the selection.
func (tx *Tx) SetText(text string) error {
	if err := tx.check(); err != nil {
		return err
	}
	tx.root.Clear()
	for _, line := range strings.Split(normalizeNewlines(text), "\n") {
		p := node.NewParagraph()
		if line != "" {
			t := node.NewText(line, 0)
			p.Append(t)
			tx.dirty[t.Key()] = struct{}{}
		}
		tx.root.Append(p)
	}
	tx.sel = nil
	tx.mutated = true
	return nil
}

// Clear empties the document down to one empty paragraph.
func (tx *Tx) Clear() error {
	if err := tx.check(); err != nil {
		return err
	}
	tx.root.Clear()
	tx.root.Append(node.NewParagraph())
	tx.sel = nil
	tx.mutated = true
	return nil
}

func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
