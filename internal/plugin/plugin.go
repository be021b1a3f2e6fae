package plugin

import (
	"sync"

	"github.com/dshills/promptslot/internal/clock"
	"github.com/dshills/promptslot/internal/dispatcher"
	"github.com/dshills/promptslot/internal/engine"
	"github.com/dshills/promptslot/internal/event"
	"github.com/dshills/promptslot/internal/logging"
)

// Host is what plugins register against: one editor instance.
type Host interface {
	// InstanceID identifies the editor for broadcast filtering.
	InstanceID() string

	Engine() *engine.Engine
	Bus() *dispatcher.Bus
	Clock() clock.Clock

	// Channel returns the broadcast channel, or nil when the editor has
	// none.
	Channel() event.Channel

	Logger() *logging.Logger
}

// Plugin is a unit of editor behaviour.
type Plugin interface {
	// Name identifies the plugin within a manager.
	Name() string

	// Register installs the plugin on h. The returned teardown removes
	// everything Register installed and is safe to call more than once.
	Register(h Host) (teardown func(), err error)
}

// Runtime is a Host assembled from its parts. Nil parts fall back to a
// wall clock and a no-op logger.
type Runtime struct {
	ID       string
	Document *engine.Engine
	Commands *dispatcher.Bus
	Timers   clock.Clock
	Events   event.Channel
	Log      *logging.Logger
}

// InstanceID implements Host.
func (r *Runtime) InstanceID() string { return r.ID }

// Engine implements Host.
func (r *Runtime) Engine() *engine.Engine { return r.Document }

// Bus implements Host.
func (r *Runtime) Bus() *dispatcher.Bus { return r.Commands }

// Clock implements Host.
func (r *Runtime) Clock() clock.Clock { return clock.OrReal(r.Timers) }

// Channel implements Host.
func (r *Runtime) Channel() event.Channel { return r.Events }

// Logger implements Host.
func (r *Runtime) Logger() *logging.Logger { return logging.OrNop(r.Log) }

// teardowns collects removal funcs and runs them once, in reverse order.
type teardowns []func()

func (t *teardowns) add(fn func()) { *t = append(*t, fn) }

func (t teardowns) once() func() {
	var o sync.Once
	return func() {
		o.Do(func() {
			for i := len(t) - 1; i >= 0; i-- {
				t[i]()
			}
		})
	}
}
