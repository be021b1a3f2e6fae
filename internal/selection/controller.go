package selection

import (
	"fmt"
	"sync"

	"github.com/dshills/promptslot/internal/dispatcher"
	"github.com/dshills/promptslot/internal/engine"
	"github.com/dshills/promptslot/internal/logging"
	"github.com/dshills/promptslot/internal/node"
)

// TagDelete marks updates that removed a selected placeholder.
const TagDelete = "selection.delete"

// RefPrefix prefixes the element reference of every controller.
const RefPrefix = "ps-node-"

// RefFor returns the element reference the renderer binds to key.
func RefFor(key node.Key) string {
	return RefPrefix + string(key)
}

// Controller tracks selection and deletion for one placeholder node.
type Controller struct {
	key    node.Key
	kind   node.Kind
	ref    string
	engine *engine.Engine
	bus    *dispatcher.Bus
	logger *logging.Logger

	mu         sync.Mutex
	unregister []func()
	mounted    bool
}

// Mount binds a controller to the placeholder key and registers its click
// and key handlers on bus.
func Mount(e *engine.Engine, bus *dispatcher.Bus, key node.Key, logger *logging.Logger) (*Controller, error) {
	var kind node.Kind
	err := e.Read(func(s *engine.State) error {
		n, ok := s.Node(key)
		if !ok {
			return fmt.Errorf("mount %s: %w", key, engine.ErrNodeNotFound)
		}
		p, ok := n.(*node.Placeholder)
		if !ok {
			return fmt.Errorf("mount %s: %w", key, ErrNotPlaceholder)
		}
		kind = p.Kind()
		return nil
	})
	if err != nil {
		return nil, err
	}

	c := &Controller{
		key:     key,
		kind:    kind,
		ref:     RefFor(key),
		engine:  e,
		bus:     bus,
		logger:  logging.OrNop(logger).WithComponent("selection").With("key", key, "kind", kind),
		mounted: true,
	}
	c.unregister = []func(){
		dispatcher.Register(bus, dispatcher.Click, dispatcher.PriorityLow, c.onClick),
		dispatcher.Register(bus, dispatcher.KeyBackspace, dispatcher.PriorityLow, c.onDelete),
		dispatcher.Register(bus, dispatcher.KeyDelete, dispatcher.PriorityLow, c.onDelete),
	}
	return c, nil
}

// Key returns the bound node key.
func (c *Controller) Key() node.Key { return c.key }

// Kind returns the bound node kind.
func (c *Controller) Kind() node.Kind { return c.kind }

// Ref returns the element reference of the bound node.
func (c *Controller) Ref() string { return c.ref }

// IsSelected reports whether the bound node is the sole node selection.
func (c *Controller) IsSelected() bool {
	return c.engine.State().IsSelected(c.key)
}

// Mounted reports whether the controller still has its handlers registered.
func (c *Controller) Mounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted
}

// Unmount removes the controller's handlers. It is safe to call more than
// once.
func (c *Controller) Unmount() {
	c.mu.Lock()
	unregister := c.unregister
	c.unregister = nil
	c.mounted = false
	c.mu.Unlock()

	for _, fn := range unregister {
		fn()
	}
}

// Select makes the bound node the sole selection.
func (c *Controller) Select() error {
	if !c.Mounted() {
		return ErrUnmounted
	}
	return c.engine.Update(func(tx *engine.Tx) error {
		tx.ClearSelection()
		return tx.SelectNode(c.key)
	})
}

func (c *Controller) onClick(ev *dispatcher.PointerEvent) bool {
	if ev == nil || ev.Target.ID != c.ref {
		return false
	}
	if err := c.Select(); err != nil {
		c.logger.Warn("select on click failed", "error", err)
		return false
	}
	ev.PreventDefault()
	return true
}

func (c *Controller) onDelete(ev *dispatcher.KeyEvent) bool {
	var sole, covered bool
	_ = c.engine.Read(func(s *engine.State) error {
		sole = s.IsSelected(c.key)
		covered = !sole && s.RangeContains(c.key)
		return nil
	})

	switch {
	case sole:
		if ev != nil {
			ev.PreventDefault()
		}
		c.announce()
		err := c.engine.Update(func(tx *engine.Tx) error {
			return tx.Remove(c.key)
		}, engine.Tag(TagDelete))
		if err != nil {
			c.logger.Warn("remove selected node failed", "error", err)
		}
		return true
	case covered:
		c.announce()
		return false
	}
	return false
}

// announce dispatches the kind's delete command for the bound node.
func (c *Controller) announce() {
	cmd, ok := dispatcher.DeleteCommand(c.kind)
	if !ok {
		return
	}
	if !dispatcher.Dispatch(c.bus, cmd, c.key) {
		c.logger.Debug("delete command unhandled")
	}
}
