package transform

import (
	"sync"

	"github.com/dshills/promptslot/internal/node"
)

// Segment is one run of scanned text: plain text, or a match of Kind.
type Segment struct {
	Start int
	End   int
	Text  string
	Kind  node.Kind // empty for plain text
	Match Match

	reg int
}

// IsPlain reports whether the segment is plain text.
func (s Segment) IsPlain() bool { return s.Kind == "" }

// Scanner splits text into plain and placeholder segments.
type Scanner struct {
	regs []Registration
}

// NewScanner returns a scanner trying regs in order.
func NewScanner(regs ...Registration) (*Scanner, error) {
	for _, r := range regs {
		if r.Match == nil || r.Create == nil {
			return nil, ErrNoMatcher
		}
	}
	return &Scanner{regs: append([]Registration(nil), regs...)}, nil
}

// Registrations returns the registrations in the order they are tried.
func (s *Scanner) Registrations() []Registration {
	return append([]Registration(nil), s.regs...)
}

// scanState is one entry on the scanner stack: a pending piece still to be
// scanned, or a resolved match ready to emit.
type scanState struct {
	start   int
	text    string
	pending bool
	reg     int
	match   Match
}

// Scan splits text into segments covering it exactly, in order. Text with
// no match yields one plain segment; empty text yields none.
func (s *Scanner) Scan(text string) []Segment {
	var out []Segment
	emit := func(seg Segment) {
		if seg.IsPlain() && len(out) > 0 && out[len(out)-1].IsPlain() {
			last := &out[len(out)-1]
			last.End = seg.End
			last.Text += seg.Text
			return
		}
		out = append(out, seg)
	}

	stack := []scanState{{start: 0, text: text, pending: true}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !top.pending {
			r := s.regs[top.reg]
			emit(Segment{
				Start: top.start,
				End:   top.start + len(top.text),
				Text:  top.text,
				Kind:  r.Kind,
				Match: top.match,
				reg:   top.reg,
			})
			continue
		}
		if top.text == "" {
			continue
		}

		idx, m, ok := s.first(top.text)
		if !ok {
			emit(Segment{Start: top.start, End: top.start + len(top.text), Text: top.text})
			continue
		}

		// Pushed in reverse so that before is handled first.
		m.Start += top.start
		m.End += top.start
		stack = append(stack,
			scanState{start: m.End, text: top.text[m.End-top.start:], pending: true},
			scanState{start: m.Start, text: m.Text, reg: idx, match: m},
			scanState{start: top.start, text: top.text[:m.Start-top.start], pending: true},
		)
	}
	return out
}

// first returns the first registration matching text and its match.
func (s *Scanner) first(text string) (int, Match, bool) {
	for i, r := range s.regs {
		if m, ok := r.Match(text); ok && m.End > m.Start {
			return i, m, true
		}
	}
	return 0, Match{}, false
}

var (
	defaultOnce    sync.Once
	defaultScanner *Scanner
)

// Scan splits text with the built-in placeholder kinds. It needs no
// document.
func Scan(text string) []Segment {
	defaultOnce.Do(func() {
		reg := node.DefaultRegistry()
		defaultScanner = &Scanner{regs: Registrations(reg)}
	})
	return defaultScanner.Scan(text)
}
