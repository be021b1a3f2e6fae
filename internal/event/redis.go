package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel used when none is configured.
const DefaultRedisChannel = "promptslot:events"

// RedisChannel publishes events as JSON on a Redis pub/sub channel and
// delivers received events to local subscriptions from one receiver
// goroutine.
type RedisChannel struct {
	hub
	client     goredis.UniversalClient
	ownsClient bool
	name       string
	source     string
	pubsub     *goredis.PubSub
	done       chan struct{}
	closeOnce  sync.Once
}

// NewRedisChannel subscribes to the configured channel on client and starts
// the receiver. The client stays owned by the caller.
func NewRedisChannel(ctx context.Context, client goredis.UniversalClient, opts ...Option) (*RedisChannel, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	ps := client.Subscribe(ctx, o.channel)
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", o.channel, err)
	}

	c := &RedisChannel{
		hub:    hub{logger: o.logger.WithComponent("event.redis").With("channel", o.channel)},
		client: client,
		name:   o.channel,
		source: o.source,
		pubsub: ps,
		done:   make(chan struct{}),
	}
	go c.receive(ps.Channel())
	return c, nil
}

// DialRedis connects to addr and returns a channel that closes the client
// on Close.
func DialRedis(ctx context.Context, addr string, opts ...Option) (*RedisChannel, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	c, err := NewRedisChannel(ctx, rdb, opts...)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	c.ownsClient = true
	return c, nil
}

func (c *RedisChannel) receive(ch <-chan *goredis.Message) {
	defer close(c.done)
	ctx := context.Background()
	for m := range ch {
		var ev Event
		if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
			c.logger.Warn("bad redis event payload", "error", err)
			continue
		}
		if err := ev.validate(); err != nil {
			c.logger.Warn("invalid redis event", "error", err)
			continue
		}
		if err := c.deliver(ctx, ev); err != nil {
			c.logger.Warn("event delivery failed", "type", ev.Type, "error", err)
		}
	}
}

// Name returns the Redis channel name.
func (c *RedisChannel) Name() string { return c.name }

// Publish sends ev to Redis. Delivery to local subscriptions happens when
// the message comes back from the server.
func (c *RedisChannel) Publish(ctx context.Context, ev Event) error {
	if err := ev.validate(); err != nil {
		return err
	}
	if c.isClosed() {
		return ErrClosed
	}
	raw, err := json.Marshal(ev.stamped(c.source))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := c.client.Publish(ctx, c.name, raw).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", c.name, err)
	}
	return nil
}

// Subscribe registers h for events whose type matches pattern.
func (c *RedisChannel) Subscribe(pattern Type, h Handler, opts ...SubscriptionOption) (Subscription, error) {
	return c.subscribe(pattern, h, opts...)
}

// Close stops the receiver and waits for it to exit.
func (c *RedisChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.close()
		err = c.pubsub.Close()
		<-c.done
		if c.ownsClient {
			if cerr := c.client.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}
