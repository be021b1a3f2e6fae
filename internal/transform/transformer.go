package transform

import (
	"sync/atomic"

	"github.com/dshills/promptslot/internal/engine"
	"github.com/dshills/promptslot/internal/logging"
	"github.com/dshills/promptslot/internal/node"
)

// PayloadSource supplies the payload given to placeholders of kind when they
// are materialized from text. derived is the payload built from the match.
// Returning false keeps it.
type PayloadSource func(kind node.Kind, derived node.Payload) (node.Payload, bool)

// Stats counts transformer activity.
type Stats struct {
	Scans        uint64 // text nodes scanned
	Replacements uint64 // placeholders materialized from text
	Reverted     uint64 // placeholders turned back into text
	Failures     uint64 // matches whose factory failed
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithLogger sets the transformer logger.
func WithLogger(l *logging.Logger) Option {
	return func(t *Transformer) {
		t.logger = logging.OrNop(l).WithComponent("transform")
	}
}

// WithPayloadSource sets the payload source for materialized placeholders.
func WithPayloadSource(src PayloadSource) Option {
	return func(t *Transformer) {
		t.payloads = src
	}
}

// WithRegistrations replaces the registrations derived from the registry.
func WithRegistrations(regs ...Registration) Option {
	return func(t *Transformer) {
		t.custom = regs
	}
}

// Transformer re-scans dirty text nodes of a document and replaces
// placeholder projections with placeholder nodes.
type Transformer struct {
	registry *node.Registry
	scanner  *Scanner
	custom   []Registration
	payloads PayloadSource
	logger   *logging.Logger

	scans        atomic.Uint64
	replacements atomic.Uint64
	reverted     atomic.Uint64
	failures     atomic.Uint64
}

// New returns a transformer for the classes of reg.
func New(reg *node.Registry, opts ...Option) (*Transformer, error) {
	t := &Transformer{registry: reg, logger: logging.Nop()}
	for _, opt := range opts {
		opt(t)
	}
	regs := t.custom
	if regs == nil {
		regs = Registrations(reg)
	}
	s, err := NewScanner(regs...)
	if err != nil {
		return nil, err
	}
	t.scanner = s
	return t, nil
}

// Scanner returns the scanner used by the transformer.
func (t *Transformer) Scanner() *Scanner { return t.scanner }

// Stats returns a snapshot of the counters.
func (t *Transformer) Stats() Stats {
	return Stats{
		Scans:        t.scans.Load(),
		Replacements: t.replacements.Load(),
		Reverted:     t.reverted.Load(),
		Failures:     t.failures.Load(),
	}
}

// Attach registers the transformer with e. The returned func detaches it.
func (t *Transformer) Attach(e *engine.Engine) (detach func()) {
	return e.RegisterTransform("placeholder", t.Transform)
}

// Transform is an engine.Transform. Dirty text nodes are scanned and split
// into text and placeholder nodes; dirty text-backed placeholders whose
// projection no longer matches their own pattern become plain text.
func (t *Transformer) Transform(tx *engine.Tx, dirty []node.Key) error {
	for _, k := range dirty {
		n, ok := tx.Node(k)
		if !ok {
			continue
		}
		var err error
		switch v := n.(type) {
		case *node.Text:
			err = t.transformText(tx, v)
		case *node.Placeholder:
			err = t.checkPlaceholder(tx, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *Transformer) transformText(tx *engine.Tx, n *node.Text) error {
	if n.Len() == 0 {
		return nil
	}
	t.scans.Add(1)
	segs := t.scanner.Scan(n.TextContent())
	if len(segs) == 1 && segs[0].IsPlain() {
		return nil
	}

	nodes := make([]node.Inline, 0, len(segs))
	created := 0
	for _, seg := range segs {
		if seg.IsPlain() {
			if len(nodes) == 0 {
				nodes = append(nodes, n.WithText(seg.Text))
			} else {
				nodes = append(nodes, node.NewText(seg.Text, n.Format()))
			}
			continue
		}
		ph, err := t.create(seg, n.Format())
		if err != nil {
			// Leave the whole run as text; scanning it again would fail the
			// same way.
			t.failures.Add(1)
			t.logger.Warn("placeholder factory failed", "kind", seg.Kind, "text", seg.Text, "error", err)
			return nil
		}
		nodes = append(nodes, ph)
		created++
	}

	if err := tx.Replace(n.Key(), nodes...); err != nil {
		return err
	}
	tx.CountReplacements(created)
	t.replacements.Add(uint64(created))
	t.logger.Debug("materialized placeholders", "key", n.Key(), "count", created)
	return nil
}

func (t *Transformer) create(seg Segment, format node.Format) (*node.Placeholder, error) {
	ph, err := t.scanner.regs[seg.reg].Create(seg.Match, format)
	if err != nil {
		return nil, err
	}
	if t.payloads == nil {
		return ph, nil
	}
	if p, ok := t.payloads(seg.Kind, ph.Payload()); ok {
		return t.registry.WithPayload(ph, p)
	}
	return ph, nil
}

func (t *Transformer) checkPlaceholder(tx *engine.Tx, p *node.Placeholder) error {
	c, err := t.registry.Class(p.Kind())
	if err != nil {
		return nil
	}
	if node.ProjectionMatches(c, p.TextContent()) {
		return nil
	}
	if err := tx.Replace(p.Key(), node.NewText(p.TextContent(), p.Format())); err != nil {
		return err
	}
	t.reverted.Add(1)
	t.logger.Debug("placeholder reverted to text", "kind", p.Kind(), "key", p.Key())
	return nil
}

// Parse builds a document tree from text without a long-lived engine.
func (t *Transformer) Parse(text string) (*node.Root, error) {
	e := engine.New(engine.WithRegistry(t.registry), engine.WithLogger(t.logger))
	detach := t.Attach(e)
	defer detach()

	if err := e.Update(func(tx *engine.Tx) error { return tx.SetText(text) }); err != nil {
		return nil, err
	}
	return e.State().Root(), nil
}
