package engine

import (
	"github.com/dshills/promptslot/internal/node"
)

// view holds the read-side queries shared by State and Tx.
type view struct {
	root *node.Root
	sel  Selection
}

func (v *view) node(key node.Key) (node.Node, bool) {
	if v.root.Key() == key {
		return v.root, true
	}
	if i := v.root.IndexOf(key); i >= 0 {
		return v.root.Paragraph(i), true
	}
	_, _, n, ok := v.root.Find(key)
	if !ok {
		return nil, false
	}
	return n, true
}

// resolve converts a point into a location, clamping offsets.
func (v *view) resolve(p Point) (location, error) {
	switch p.Type {
	case PointText:
		para, idx, n, ok := v.root.Find(p.Key)
		if !ok {
			return location{}, ErrInvalidPoint
		}
		t, isText := n.(*node.Text)
		if !isText {
			return location{}, ErrInvalidPoint
		}
		off := min(max(p.Offset, 0), t.Len())
		return location{para: v.root.IndexOf(para.Key()), child: idx, offset: off, text: true}, nil
	case PointElement:
		pi := v.root.IndexOf(p.Key)
		if pi < 0 {
			return location{}, ErrInvalidPoint
		}
		off := min(max(p.Offset, 0), v.root.Paragraph(pi).Len())
		return location{para: pi, child: off}, nil
	}
	return location{}, ErrInvalidPoint
}

// rangeBounds returns the ordered start and end of a range selection.
func (v *view) rangeBounds(s *RangeSelection) (start, end location, err error) {
	a, err := v.resolve(s.Anchor)
	if err != nil {
		return location{}, location{}, err
	}
	f, err := v.resolve(s.Focus)
	if err != nil {
		return location{}, location{}, err
	}
	if f.less(a) {
		return f, a, nil
	}
	return a, f, nil
}

// pointAt returns the canonical point for the gap before child index i of
// paragraph pi. Text points are preferred over element points.
func (v *view) pointAt(pi, i int) Point {
	p := v.root.Paragraph(pi)
	if t, ok := p.Child(i - 1).(*node.Text); ok {
		return TextPoint(t.Key(), t.Len())
	}
	if t, ok := p.Child(i).(*node.Text); ok {
		return TextPoint(t.Key(), 0)
	}
	return ElementPoint(p.Key(), i)
}

// endPoint returns the point at the end of the document.
func (v *view) endPoint() Point {
	last := v.root.Len() - 1
	return v.pointAt(last, v.root.Paragraph(last).Len())
}

// beforeGap reports whether l lies at or before the gap in front of child k
// of paragraph pi.
func beforeGap(l location, pi, k int) bool {
	if l.para != pi {
		return l.para < pi
	}
	if l.text {
		return l.child < k || (l.child == k && l.offset == 0)
	}
	return l.child <= k
}

// afterGap reports whether l lies at or after the gap in front of child k of
// paragraph pi.
func afterGap(l location, pi, k int) bool {
	if l.para != pi {
		return l.para > pi
	}
	return l.child >= k
}

// inRange reports whether the inline node at child k of paragraph pi
// intersects the range [start, end]. Placeholders must be fully covered.
func (v *view) inRange(start, end location, pi, k int) bool {
	n := v.root.Paragraph(pi).Child(k)
	if t, ok := n.(*node.Text); ok {
		// Overlap of a non-empty span with [start, end].
		from, to := 0, t.Len()
		if start.para == pi && start.text && start.child == k {
			from = start.offset
		} else if !beforeGap(start, pi, k) {
			return false
		}
		if end.para == pi && end.text && end.child == k {
			to = end.offset
		} else if !afterGap(end, pi, k+1) {
			return false
		}
		return from < to
	}
	return beforeGap(start, pi, k) && afterGap(end, pi, k+1)
}

// selectedNodes returns the inline nodes covered by the selection in
// document order.
func (v *view) selectedNodes() []node.Inline {
	switch s := v.sel.(type) {
	case *NodeSelection:
		var out []node.Inline
		v.root.Walk(func(_ *node.Paragraph, _ int, n node.Inline) bool {
			if s.Has(n.Key()) {
				out = append(out, n)
			}
			return true
		})
		return out
	case *RangeSelection:
		if s.IsCollapsed() {
			return nil
		}
		start, end, err := v.rangeBounds(s)
		if err != nil {
			return nil
		}
		var out []node.Inline
		for pi := start.para; pi <= end.para; pi++ {
			p := v.root.Paragraph(pi)
			for k := 0; k < p.Len(); k++ {
				if v.inRange(start, end, pi, k) {
					out = append(out, p.Child(k))
				}
			}
		}
		return out
	}
	return nil
}

// rangeContains reports whether a non-collapsed range selection covers key.
func (v *view) rangeContains(key node.Key) bool {
	s, ok := v.sel.(*RangeSelection)
	if !ok || s.IsCollapsed() {
		return false
	}
	start, end, err := v.rangeBounds(s)
	if err != nil {
		return false
	}
	para, k, _, found := v.root.Find(key)
	if !found {
		return false
	}
	return v.inRange(start, end, v.root.IndexOf(para.Key()), k)
}

// adjacent returns the inline node next to a collapsed caret, looking
// backward or forward within the caret's paragraph.
func (v *view) adjacent(backward bool) node.Inline {
	s, ok := v.sel.(*RangeSelection)
	if !ok || !s.IsCollapsed() {
		return nil
	}
	l, err := v.resolve(s.Anchor)
	if err != nil {
		return nil
	}
	p := v.root.Paragraph(l.para)
	gap := l.child
	if l.text {
		t := p.Child(l.child).(*node.Text)
		switch {
		case l.offset == 0:
		case l.offset == t.Len():
			gap = l.child + 1
		default:
			return t
		}
	}
	if backward {
		return p.Child(gap - 1)
	}
	return p.Child(gap)
}
