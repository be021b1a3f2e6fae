package node

import (
	"strings"

	"github.com/google/uuid"
)

// Key uniquely identifies a node across document versions.
type Key string

// NewKey returns a fresh random node key.
func NewKey() Key {
	return Key(uuid.NewString())
}

// Kind discriminates node types.
type Kind string

// Structural kinds.
const (
	KindRoot      Kind = "root"
	KindParagraph Kind = "paragraph"
	KindText      Kind = "text"
)

// Placeholder kinds.
const (
	KindContext          Kind = "context-block"
	KindHistory          Kind = "history-block"
	KindQuery            Kind = "query-block"
	KindRequestURL       Kind = "request-url-block"
	KindCurrent          Kind = "current-block"
	KindLastRun          Kind = "last-run-block"
	KindErrorMessage     Kind = "error-message-block"
	KindVariableValue    Kind = "variable-value-block"
	KindWorkflowVariable Kind = "workflow-variable-block"
	KindHITLInput        Kind = "hitl-input-block"
)

// String returns the kind's serialized type name.
func (k Kind) String() string {
	return string(k)
}

// Command returns the upper-case command suffix for the kind, e.g.
// "CONTEXT_BLOCK" for context-block.
func (k Kind) Command() string {
	return strings.ToUpper(strings.ReplaceAll(string(k), "-", "_"))
}

// Format is a bitmask of inline text formatting flags.
type Format uint16

// Formatting flags.
const (
	FormatBold Format = 1 << iota
	FormatItalic
	FormatStrikethrough
	FormatUnderline
	FormatCode
	FormatSubscript
	FormatSuperscript
	FormatHighlight
)

// Has reports whether all bits of flag are set.
func (f Format) Has(flag Format) bool {
	return f&flag == flag
}

// Node is any member of a document tree.
type Node interface {
	// Key returns the node's identity, preserved across clones.
	Key() Key

	// Kind returns the node's type discriminator.
	Kind() Kind

	// TextContent returns the node's plain-text projection.
	TextContent() string
}

// Inline is a node that lives inside a paragraph.
type Inline interface {
	Node

	// Format returns the formatting flags carried by the node.
	Format() Format

	// IsPlaceholder reports whether the node is an atomic placeholder.
	IsPlaceholder() bool
}

// Text is a run of plain text.
type Text struct {
	key    Key
	text   string
	format Format
}

// NewText creates a text node with a fresh key.
func NewText(text string, format Format) *Text {
	return &Text{key: NewKey(), text: text, format: format}
}

// Key implements Node.
func (t *Text) Key() Key { return t.key }

// Kind implements Node.
func (t *Text) Kind() Kind { return KindText }

// TextContent implements Node.
func (t *Text) TextContent() string { return t.text }

// Format implements Inline.
func (t *Text) Format() Format { return t.format }

// IsPlaceholder implements Inline.
func (t *Text) IsPlaceholder() bool { return false }

// Len returns the byte length of the text.
func (t *Text) Len() int { return len(t.text) }

// WithText returns a copy of t holding text, keeping the key and format.
func (t *Text) WithText(text string) *Text {
	return &Text{key: t.key, text: text, format: t.format}
}

// WithFormat returns a copy of t with a different format.
func (t *Text) WithFormat(format Format) *Text {
	return &Text{key: t.key, text: t.text, format: format}
}

// Placeholder is an atomic, typed inline node.
type Placeholder struct {
	key      Key
	kind     Kind
	payload  Payload
	text     string
	format   Format
	isolated bool
}

// Key implements Node.
func (p *Placeholder) Key() Key { return p.key }

// Kind implements Node.
func (p *Placeholder) Kind() Kind { return p.kind }

// TextContent implements Node. It returns the placeholder projection.
func (p *Placeholder) TextContent() string { return p.text }

// Format implements Inline.
func (p *Placeholder) Format() Format { return p.format }

// IsPlaceholder implements Inline.
func (p *Placeholder) IsPlaceholder() bool { return true }

// Payload returns a copy of the kind-specific payload. Marker kinds return nil.
func (p *Placeholder) Payload() Payload {
	if p.payload == nil {
		return nil
	}
	return p.payload.Clone()
}

// IsInline always reports true: placeholders render inside text flow.
func (p *Placeholder) IsInline() bool { return true }

// IsIsolated reports whether the node may neither merge with nor be split by
// surrounding text edits.
func (p *Placeholder) IsIsolated() bool { return p.isolated }

// IsTopLevel reports whether the node must not nest inside other inline
// containers. It matches IsIsolated for every built-in kind.
func (p *Placeholder) IsTopLevel() bool { return p.isolated }

// UpdateDOM always reports false. Placeholders are immutable visual units and
// a payload change always produces a new node.
func (p *Placeholder) UpdateDOM() bool { return false }

// Clone returns a copy of the placeholder that keeps its key.
func (p *Placeholder) Clone() *Placeholder {
	c := *p
	if p.payload != nil {
		c.payload = p.payload.Clone()
	}
	return &c
}

// WithFormat returns a copy of p with a different format.
func (p *Placeholder) WithFormat(format Format) *Placeholder {
	c := p.Clone()
	c.format = format
	return c
}
