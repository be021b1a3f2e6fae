package engine

import (
	"github.com/dshills/promptslot/internal/node"
)

// normalize restores the document invariants: at least one paragraph, no
// empty text nodes next to siblings, no adjacent text nodes with equal
// format, and a selection that references live nodes.
func (tx *Tx) normalize() {
	if tx.root.Len() == 0 {
		tx.root.Append(node.NewParagraph())
		tx.mutated = true
	}

	for pi := 0; pi < tx.root.Len(); pi++ {
		p := tx.root.Paragraph(pi)
		for k := 0; k < p.Len(); {
			if t, ok := p.Child(k).(*node.Text); ok && t.Len() == 0 && p.Len() > 1 {
				tx.replaceRange(pi, k, k+1, nil, nil)
				continue
			}
			k++
		}
		for k := 0; k+1 < p.Len(); {
			a, aok := p.Child(k).(*node.Text)
			b, bok := p.Child(k + 1).(*node.Text)
			if !aok || !bok || a.Format() != b.Format() {
				k++
				continue
			}
			merged := a.WithText(a.TextContent() + b.TextContent())
			n, bk := a.Len(), b.Key()
			tx.replaceRange(pi, k, k+2, []node.Inline{merged}, func(pt Point) Point {
				if pt.Key == bk {
					return TextPoint(merged.Key(), pt.Offset+n)
				}
				return TextPoint(merged.Key(), pt.Offset)
			})
		}
	}

	tx.repairSelection()
}

func (tx *Tx) repairSelection() {
	switch s := tx.sel.(type) {
	case *RangeSelection:
		s.Anchor = tx.canonical(s.Anchor)
		s.Focus = tx.canonical(s.Focus)
	case *NodeSelection:
		for _, k := range s.Keys() {
			if _, _, _, ok := tx.root.Find(k); !ok {
				s.remove(k)
			}
		}
		if s.Len() == 0 {
			tx.sel = nil
		}
	}
}

// canonical returns a live point equivalent to pt, falling back to the end
// of the document for points whose node is gone.
func (tx *Tx) canonical(pt Point) Point {
	l, err := tx.resolve(pt)
	if err != nil {
		return tx.endPoint()
	}
	if l.text {
		return TextPoint(pt.Key, l.offset)
	}
	return tx.pointAt(l.para, l.child)
}
