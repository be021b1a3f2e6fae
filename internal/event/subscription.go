package event

import (
	"context"
	"sync/atomic"
)

// Handler receives delivered events.
type Handler func(ctx context.Context, ev Event)

// SubscriptionState is the delivery state of a subscription.
type SubscriptionState int32

// Subscription states.
const (
	SubscriptionStateActive SubscriptionState = iota
	SubscriptionStatePaused
	SubscriptionStateCancelled
)

func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionStateActive:
		return "active"
	case SubscriptionStatePaused:
		return "paused"
	case SubscriptionStateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Subscription is a handler attached to a channel.
type Subscription interface {
	ID() string
	Pattern() Type
	State() SubscriptionState

	// Pause holds delivery until Resume. Events published meanwhile are
	// dropped, not queued.
	Pause()
	Resume()

	// Cancel detaches the subscription from its channel. It is safe to
	// call more than once.
	Cancel()
}

// SubscriptionOption configures a subscription.
type SubscriptionOption func(*subscription)

// WithFilter delivers only events accepted by f.
func WithFilter(f FilterFunc) SubscriptionOption {
	return func(s *subscription) { s.filter = f }
}

type subscription struct {
	id      string
	pattern Type
	handler Handler
	filter  FilterFunc
	state   atomic.Int32
	detach  func(*subscription)
}

func (s *subscription) ID() string    { return s.id }
func (s *subscription) Pattern() Type { return s.pattern }

func (s *subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

func (s *subscription) Pause() { s.swap(SubscriptionStateActive, SubscriptionStatePaused) }

func (s *subscription) Resume() { s.swap(SubscriptionStatePaused, SubscriptionStateActive) }

func (s *subscription) swap(from, to SubscriptionState) {
	s.state.CompareAndSwap(int32(from), int32(to))
}

func (s *subscription) Cancel() {
	prev := SubscriptionState(s.state.Swap(int32(SubscriptionStateCancelled)))
	if prev != SubscriptionStateCancelled && s.detach != nil {
		s.detach(s)
	}
}

// accepts reports whether ev is delivered to s.
func (s *subscription) accepts(ev Event) bool {
	if s.State() != SubscriptionStateActive || !ev.Type.Matches(s.pattern) {
		return false
	}
	return s.filter == nil || s.filter(ev)
}
