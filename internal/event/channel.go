package event

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/promptslot/internal/logging"
)

// Channel publishes broadcast events and delivers them to subscriptions.
type Channel interface {
	// Publish sends ev to every matching subscription.
	Publish(ctx context.Context, ev Event) error

	// Subscribe registers h for events whose type matches pattern.
	Subscribe(pattern Type, h Handler, opts ...SubscriptionOption) (Subscription, error)

	// Close detaches every subscription. Publishing afterwards fails with
	// ErrClosed.
	Close() error
}

// Option configures a channel.
type Option func(*options)

type options struct {
	logger  *logging.Logger
	source  string
	channel string
}

func defaultOptions() options {
	return options{
		logger:  logging.Nop(),
		source:  uuid.NewString(),
		channel: DefaultRedisChannel,
	}
}

// WithLogger sets the channel logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = logging.OrNop(l)
	}
}

// WithSource sets the source stamped on published events that have none.
func WithSource(source string) Option {
	return func(o *options) {
		if source != "" {
			o.source = source
		}
	}
}

// WithRedisChannel sets the Redis pub/sub channel name.
func WithRedisChannel(name string) Option {
	return func(o *options) {
		if name != "" {
			o.channel = name
		}
	}
}

// hub holds the subscriptions of a channel and fans events out to them.
type hub struct {
	mu     sync.RWMutex
	subs   []*subscription
	closed bool
	logger *logging.Logger
}

func (h *hub) subscribe(pattern Type, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !validPattern(pattern) {
		return nil, fmt.Errorf("subscribe %q: %w", pattern, ErrInvalidPattern)
	}

	s := &subscription{
		id:      uuid.NewString(),
		pattern: pattern,
		handler: handler,
		detach:  h.remove,
	}
	for _, opt := range opts {
		opt(s)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}
	h.subs = append(h.subs, s)
	return s, nil
}

func (h *hub) remove(s *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = slices.DeleteFunc(h.subs, func(x *subscription) bool { return x == s })
}

// deliver runs every matching handler in subscription order. Handler panics
// are recovered and returned joined.
func (h *hub) deliver(ctx context.Context, ev Event) error {
	h.mu.RLock()
	subs := slices.Clone(h.subs)
	h.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if !s.accepts(ev) {
			continue
		}
		if err := h.call(ctx, s, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *hub) call(ctx context.Context, s *subscription, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			n := runtime.Stack(stack, false)
			err = &PanicError{SubscriptionID: s.id, Type: ev.Type, Value: r, Stack: string(stack[:n])}
			h.logger.Error("event handler panic", "type", ev.Type, "subscription", s.id, "panic", fmt.Sprint(r))
		}
	}()
	s.handler(ctx, ev)
	return nil
}

// close marks the hub closed and cancels every subscription. It reports
// false when the hub was already closed.
func (h *hub) close() bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.closed = true
	subs := h.subs
	h.subs = nil
	h.mu.Unlock()

	for _, s := range subs {
		s.state.Store(int32(SubscriptionStateCancelled))
	}
	return true
}

func (h *hub) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

// count returns the number of live subscriptions.
func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func validPattern(p Type) bool {
	return p.IsValid()
}
