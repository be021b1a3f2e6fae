package node

import "strings"

// Paragraph is a block container of inline nodes.
type Paragraph struct {
	key      Key
	children []Inline
}

// NewParagraph creates a paragraph with a fresh key holding children.
func NewParagraph(children ...Inline) *Paragraph {
	p := &Paragraph{key: NewKey()}
	p.children = append(p.children, children...)
	return p
}

// Key implements Node.
func (p *Paragraph) Key() Key { return p.key }

// Kind implements Node.
func (p *Paragraph) Kind() Kind { return KindParagraph }

// TextContent implements Node. It concatenates the projections of all children.
func (p *Paragraph) TextContent() string {
	var sb strings.Builder
	for _, c := range p.children {
		sb.WriteString(c.TextContent())
	}
	return sb.String()
}

// Len returns the number of children.
func (p *Paragraph) Len() int { return len(p.children) }

// Child returns the child at index i, or nil when out of range.
func (p *Paragraph) Child(i int) Inline {
	if i < 0 || i >= len(p.children) {
		return nil
	}
	return p.children[i]
}

// Children returns a copy of the child list.
func (p *Paragraph) Children() []Inline {
	out := make([]Inline, len(p.children))
	copy(out, p.children)
	return out
}

// IndexOf returns the index of the child with key, or -1.
func (p *Paragraph) IndexOf(key Key) int {
	for i, c := range p.children {
		if c.Key() == key {
			return i
		}
	}
	return -1
}

// Insert inserts nodes before index i. An index past the end appends.
func (p *Paragraph) Insert(i int, nodes ...Inline) {
	if i < 0 {
		i = 0
	}
	if i > len(p.children) {
		i = len(p.children)
	}
	out := make([]Inline, 0, len(p.children)+len(nodes))
	out = append(out, p.children[:i]...)
	out = append(out, nodes...)
	out = append(out, p.children[i:]...)
	p.children = out
}

// Append adds nodes to the end of the paragraph.
func (p *Paragraph) Append(nodes ...Inline) {
	p.children = append(p.children, nodes...)
}

// Replace substitutes the child at index i with nodes.
func (p *Paragraph) Replace(i int, nodes ...Inline) {
	if i < 0 || i >= len(p.children) {
		return
	}
	out := make([]Inline, 0, len(p.children)-1+len(nodes))
	out = append(out, p.children[:i]...)
	out = append(out, nodes...)
	out = append(out, p.children[i+1:]...)
	p.children = out
}

// RemoveAt removes the child at index i.
func (p *Paragraph) RemoveAt(i int) {
	p.Replace(i)
}

// Truncate drops all children from index i onwards and returns them.
func (p *Paragraph) Truncate(i int) []Inline {
	if i < 0 {
		i = 0
	}
	if i >= len(p.children) {
		return nil
	}
	tail := make([]Inline, len(p.children)-i)
	copy(tail, p.children[i:])
	p.children = p.children[:i:i]
	return tail
}

// Clone returns a copy of the paragraph that keeps its key. Inline children
// are immutable and shared.
func (p *Paragraph) Clone() *Paragraph {
	return &Paragraph{key: p.key, children: p.Children()}
}

// Root is the top of a document tree.
type Root struct {
	key        Key
	paragraphs []*Paragraph
}

// NewRoot creates a root with a fresh key.
func NewRoot(paragraphs ...*Paragraph) *Root {
	r := &Root{key: NewKey()}
	r.paragraphs = append(r.paragraphs, paragraphs...)
	return r
}

// Key implements Node.
func (r *Root) Key() Key { return r.key }

// Kind implements Node.
func (r *Root) Kind() Kind { return KindRoot }

// TextContent implements Node. Paragraph texts are joined with newlines.
func (r *Root) TextContent() string {
	parts := make([]string, len(r.paragraphs))
	for i, p := range r.paragraphs {
		parts[i] = p.TextContent()
	}
	return strings.Join(parts, "\n")
}

// Len returns the number of paragraphs.
func (r *Root) Len() int { return len(r.paragraphs) }

// Paragraph returns the paragraph at index i, or nil when out of range.
func (r *Root) Paragraph(i int) *Paragraph {
	if i < 0 || i >= len(r.paragraphs) {
		return nil
	}
	return r.paragraphs[i]
}

// Paragraphs returns a copy of the paragraph list.
func (r *Root) Paragraphs() []*Paragraph {
	out := make([]*Paragraph, len(r.paragraphs))
	copy(out, r.paragraphs)
	return out
}

// IndexOf returns the index of the paragraph with key, or -1.
func (r *Root) IndexOf(key Key) int {
	for i, p := range r.paragraphs {
		if p.key == key {
			return i
		}
	}
	return -1
}

// Insert inserts paragraphs before index i.
func (r *Root) Insert(i int, paragraphs ...*Paragraph) {
	if i < 0 {
		i = 0
	}
	if i > len(r.paragraphs) {
		i = len(r.paragraphs)
	}
	out := make([]*Paragraph, 0, len(r.paragraphs)+len(paragraphs))
	out = append(out, r.paragraphs[:i]...)
	out = append(out, paragraphs...)
	out = append(out, r.paragraphs[i:]...)
	r.paragraphs = out
}

// Append adds paragraphs to the end of the root.
func (r *Root) Append(paragraphs ...*Paragraph) {
	r.paragraphs = append(r.paragraphs, paragraphs...)
}

// RemoveAt removes the paragraph at index i.
func (r *Root) RemoveAt(i int) {
	if i < 0 || i >= len(r.paragraphs) {
		return
	}
	out := make([]*Paragraph, 0, len(r.paragraphs)-1)
	out = append(out, r.paragraphs[:i]...)
	out = append(out, r.paragraphs[i+1:]...)
	r.paragraphs = out
}

// Clear removes every paragraph.
func (r *Root) Clear() {
	r.paragraphs = nil
}

// Clone returns a deep copy of the container structure that keeps every key.
func (r *Root) Clone() *Root {
	c := &Root{key: r.key, paragraphs: make([]*Paragraph, len(r.paragraphs))}
	for i, p := range r.paragraphs {
		c.paragraphs[i] = p.Clone()
	}
	return c
}

// Walk calls fn for every inline node in document order along with its
// paragraph and index. Returning false stops the walk.
func (r *Root) Walk(fn func(p *Paragraph, index int, n Inline) bool) {
	for _, p := range r.paragraphs {
		for i, c := range p.children {
			if !fn(p, i, c) {
				return
			}
		}
	}
}

// Find locates the inline node with key.
func (r *Root) Find(key Key) (p *Paragraph, index int, n Inline, ok bool) {
	r.Walk(func(pp *Paragraph, i int, c Inline) bool {
		if c.Key() == key {
			p, index, n, ok = pp, i, c, true
			return false
		}
		return true
	})
	return p, index, n, ok
}

// Placeholders returns every placeholder node in document order.
func (r *Root) Placeholders() []*Placeholder {
	var out []*Placeholder
	r.Walk(func(_ *Paragraph, _ int, n Inline) bool {
		if ph, ok := n.(*Placeholder); ok {
			out = append(out, ph)
		}
		return true
	})
	return out
}
