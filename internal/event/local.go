package event

import (
	"context"
)

// LocalChannel delivers events synchronously within the process.
type LocalChannel struct {
	hub
	source string
}

// NewLocalChannel creates an in-process channel.
func NewLocalChannel(opts ...Option) *LocalChannel {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &LocalChannel{
		hub:    hub{logger: o.logger.WithComponent("event.local")},
		source: o.source,
	}
}

// Publish delivers ev to every matching subscription before returning. A
// handler panic does not stop delivery; recovered panics are returned as
// *PanicError values joined together.
func (c *LocalChannel) Publish(ctx context.Context, ev Event) error {
	if err := ev.validate(); err != nil {
		return err
	}
	if c.isClosed() {
		return ErrClosed
	}
	return c.deliver(ctx, ev.stamped(c.source))
}

// Subscribe registers h for events whose type matches pattern.
func (c *LocalChannel) Subscribe(pattern Type, h Handler, opts ...SubscriptionOption) (Subscription, error) {
	return c.subscribe(pattern, h, opts...)
}

// Subscriptions returns the number of live subscriptions.
func (c *LocalChannel) Subscriptions() int {
	return c.count()
}

// Close detaches every subscription.
func (c *LocalChannel) Close() error {
	c.close()
	return nil
}
