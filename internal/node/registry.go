package node

import (
	"fmt"
	"sync"

	"github.com/dshills/promptslot/internal/logging"
)

// Registry holds the placeholder classes available to a document.
type Registry struct {
	mu      sync.RWMutex
	classes map[Kind]Class
	order   []Kind
}

// NewRegistry creates a registry holding classes.
// It panics on duplicate kinds, which is a programming error.
func NewRegistry(classes ...Class) *Registry {
	r := &Registry{classes: make(map[Kind]Class)}
	for _, c := range classes {
		if err := r.Register(c); err != nil {
			panic(err)
		}
	}
	return r
}

// DefaultRegistry returns a registry holding every built-in class.
func DefaultRegistry() *Registry {
	return NewRegistry(BuiltinClasses()...)
}

// Register adds a class. Registering a kind twice returns ErrDuplicateKind.
func (r *Registry) Register(c Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.classes[c.Kind()]; exists {
		return kindError("register", c.Kind(), ErrDuplicateKind)
	}
	r.classes[c.Kind()] = c
	r.order = append(r.order, c.Kind())
	return nil
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.classes[kind]
	return ok
}

// Class returns the class registered for kind.
func (r *Registry) Class(kind Kind) (Class, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.classes[kind]
	if !ok {
		return nil, kindError("lookup", kind, ErrKindNotRegistered)
	}
	return c, nil
}

// Classes returns the registered classes in registration order.
func (r *Registry) Classes() []Class {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Class, len(r.order))
	for i, k := range r.order {
		out[i] = r.classes[k]
	}
	return out
}

// Kinds returns the registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Kind(nil), r.order...)
}

// Require returns an error naming the first kind in kinds that is not registered.
func (r *Registry) Require(kinds ...Kind) error {
	for _, k := range kinds {
		if !r.Has(k) {
			return kindError("require", k, ErrKindNotRegistered)
		}
	}
	return nil
}

// Create builds a placeholder of kind with a fresh key. A nil payload is
// replaced by the kind's default payload. Payloads whose projection would
// not read back as the same kind fail with ErrInvalidPayload.
func (r *Registry) Create(kind Kind, payload Payload) (*Placeholder, error) {
	c, err := r.Class(kind)
	if err != nil {
		return nil, kindError("create", kind, ErrKindNotRegistered)
	}
	p, err := build(c, NewKey(), payload, 0)
	if err != nil {
		return nil, err
	}
	if !ProjectionMatches(c, p.text) {
		return nil, kindError("create", kind, fmt.Errorf("%w: projection %q does not match its pattern", ErrInvalidPayload, p.text))
	}
	return p, nil
}

// CreateFromMatch builds a placeholder from regexp submatches of the kind's
// projection, carrying format from the text run it was found in.
func (r *Registry) CreateFromMatch(kind Kind, groups []string, format Format) (*Placeholder, error) {
	c, err := r.Class(kind)
	if err != nil {
		return nil, kindError("create", kind, ErrKindNotRegistered)
	}
	return build(c, NewKey(), c.PayloadFromMatch(groups), format)
}

// WithPayload returns a copy of p carrying payload and the matching projection.
// Unlike Create it accepts projections its pattern rejects; the transformer
// reverts such placeholders to text.
func (r *Registry) WithPayload(p *Placeholder, payload Payload) (*Placeholder, error) {
	c, err := r.Class(p.kind)
	if err != nil {
		return nil, err
	}
	return build(c, p.key, payload, p.format)
}

// Decorate describes p to the host renderer. Decorating a kind that is not
// registered fails; a payload the class cannot present yields a degraded
// decoration and a logged diagnostic.
func (r *Registry) Decorate(p *Placeholder, env DecorateEnv) (Decoration, error) {
	c, err := r.Class(p.kind)
	if err != nil {
		return Decoration{}, kindError("decorate", p.kind, ErrKindNotRegistered)
	}

	d := Decoration{Key: p.key, Kind: p.kind, Text: p.text}
	if env.Selected != nil {
		d.Selected = env.Selected(p.key)
	}
	if env.Callbacks != nil {
		d.Callbacks = env.Callbacks(p.kind, p.key)
	}

	props, err := c.Props(p, env)
	d.Props = props
	if err != nil {
		d.Degraded = true
		d.Err = err
		logging.OrNop(env.Logger).Warn("degraded placeholder decoration",
			"kind", p.kind, "key", p.key, "error", err)
	}
	return d, nil
}

func build(c Class, key Key, payload Payload, format Format) (*Placeholder, error) {
	if payload == nil {
		payload = c.DefaultPayload()
	}
	if err := c.CheckPayload(payload); err != nil {
		return nil, kindError("create", c.Kind(), err)
	}
	if payload != nil {
		payload = payload.Clone()
	}
	return &Placeholder{
		key:      key,
		kind:     c.Kind(),
		payload:  payload,
		text:     c.Projection(payload),
		format:   format,
		isolated: c.Isolated(),
	}, nil
}

// String implements fmt.Stringer for debugging.
func (p *Placeholder) String() string {
	return fmt.Sprintf("%s(%s)", p.kind, p.text)
}
