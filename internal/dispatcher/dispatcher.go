package dispatcher

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/dshills/promptslot/internal/logging"
)

// Bus routes commands to handlers in priority order.
type Bus struct {
	mu sync.RWMutex

	registry *Registry
	config   Config
	metrics  *Metrics
	logger   *logging.Logger

	preHooks  []PreDispatchHook
	postHooks []PostDispatchHook
}

// New creates a bus with the given configuration.
func New(config Config) *Bus {
	b := &Bus{
		registry: NewRegistry(),
		config:   config,
		logger:   logging.OrNop(config.Logger).WithComponent("dispatcher"),
	}
	if config.EnableMetrics {
		b.metrics = NewMetrics(config.Registerer)
	}
	return b
}

// NewWithDefaults creates a bus with the default configuration.
func NewWithDefaults() *Bus {
	return New(DefaultConfig())
}

// Register adds a handler for cmd at priority. The returned func removes
// exactly this handler and is safe to call more than once.
func Register[P any](b *Bus, cmd Command[P], priority Priority, fn func(payload P) bool) (unregister func()) {
	t := cmd.Type()
	id := b.registry.add(t, priority, func(payload any) bool {
		p, _ := payload.(P)
		return fn(p)
	})
	var once sync.Once
	return func() {
		once.Do(func() { b.registry.remove(t, id) })
	}
}

// Dispatch runs the handlers of cmd from the highest priority down until
// one returns true. It reports whether a handler consumed the command; a
// command without handlers reports false.
func Dispatch[P any](b *Bus, cmd Command[P], payload P) bool {
	handled, _ := b.dispatch(cmd.Type(), payload)
	return handled
}

func (b *Bus) dispatch(t Type, payload any) (handled bool, err error) {
	start := time.Now()

	b.mu.RLock()
	pre := append([]PreDispatchHook(nil), b.preHooks...)
	post := append([]PostDispatchHook(nil), b.postHooks...)
	b.mu.RUnlock()

	defer func() {
		for _, h := range post {
			h(t, payload, handled, err)
		}
		if b.metrics != nil {
			b.metrics.RecordDispatch(t, time.Since(start), handled)
		}
	}()

	for _, h := range pre {
		if !h(t, payload) {
			b.logger.Debug("command cancelled", "command", t)
			return false, ErrCancelled
		}
	}

	handlers := b.registry.get(t)
	if len(handlers) == 0 {
		b.logger.Debug("no handler for command", "command", t)
		return false, nil
	}
	for _, h := range handlers {
		ok, herr := b.execute(t, h, payload)
		if herr != nil {
			err = herr
			continue
		}
		if ok {
			return true, err
		}
	}
	return false, err
}

// execute runs one handler, recovering from panics when configured.
func (b *Bus) execute(t Type, h entry, payload any) (handled bool, err error) {
	if !b.config.RecoverFromPanic {
		return h.fn(payload), nil
	}
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			n := runtime.Stack(stack, false)
			err = fmt.Errorf("%w: %s: %v", ErrPanic, t, r)
			b.logger.Error("handler panic", "command", t, "priority", h.priority,
				"panic", fmt.Sprint(r), "stack", string(stack[:n]))
			if b.metrics != nil {
				b.metrics.RecordPanic(t)
			}
			handled = false
		}
	}()
	return h.fn(payload), nil
}

// Has reports whether a handler is registered for t.
func (b *Bus) Has(t Type) bool {
	return b.registry.Has(t)
}

// Registry returns the handler registry.
func (b *Bus) Registry() *Registry {
	return b.registry
}

// Metrics returns the metrics collectors, or nil when disabled.
func (b *Bus) Metrics() *Metrics {
	return b.metrics
}

// Config returns the bus configuration.
func (b *Bus) Config() Config {
	return b.config
}

// AddPreHook registers a pre-dispatch hook.
func (b *Bus) AddPreHook(h PreDispatchHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.preHooks = append(b.preHooks, h)
}

// AddPostHook registers a post-dispatch hook.
func (b *Bus) AddPostHook(h PostDispatchHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.postHooks = append(b.postHooks, h)
}
