package plugin

import (
	"context"
	"sync"

	"github.com/dshills/promptslot/internal/dispatcher"
	"github.com/dshills/promptslot/internal/engine"
	"github.com/dshills/promptslot/internal/event"
)

// QuickInsertTrigger is the text the insert-quickly broadcast types.
const QuickInsertTrigger = "/"

// Update tags.
const (
	TagUpdateValue   = "plugin.update-value"
	TagInsertQuickly = "plugin.insert-quickly"
)

// Update applies the update-value and insert-quickly broadcasts addressed
// to the host instance. Broadcasts for other instances are ignored.
type Update struct {
	mu       sync.Mutex
	quick    event.Subscription
	disabled bool
}

// NewUpdate creates the plugin.
func NewUpdate() *Update { return &Update{} }

// SetQuickInsert pauses or resumes the insert-quickly subscription. The
// setting survives re-registration. Update-value broadcasts are not
// affected.
func (u *Update) SetQuickInsert(enabled bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.disabled = !enabled
	u.applyLocked()
}

func (u *Update) applyLocked() {
	if u.quick == nil {
		return
	}
	if u.disabled {
		u.quick.Pause()
	} else {
		u.quick.Resume()
	}
}

// Name implements Plugin.
func (*Update) Name() string { return "update" }

// Register implements Plugin. It fails with ErrNoChannel when the host has
// no broadcast channel.
func (u *Update) Register(h Host) (func(), error) {
	ch := h.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}
	only := event.WithFilter(event.ForInstance(h.InstanceID()))

	var td teardowns
	sub, err := ch.Subscribe(event.TypeUpdateValue, func(_ context.Context, ev event.Event) {
		u.replace(h, ev)
	}, only)
	if err != nil {
		return nil, err
	}
	td.add(sub.Cancel)

	quick, err := ch.Subscribe(event.TypeInsertQuickly, func(context.Context, event.Event) {
		u.insertQuickly(h)
	}, only)
	if err != nil {
		td.once()()
		return nil, err
	}
	u.mu.Lock()
	u.quick = quick
	u.applyLocked()
	u.mu.Unlock()
	td.add(func() {
		quick.Cancel()
		u.mu.Lock()
		if u.quick == quick {
			u.quick = nil
		}
		u.mu.Unlock()
	})
	return td.once(), nil
}

func (*Update) replace(h Host, ev event.Event) {
	v, err := event.Decode[event.UpdateValue](ev)
	if err != nil {
		h.Logger().Warn("bad update-value payload", "error", err)
		return
	}
	err = h.Engine().Update(func(tx *engine.Tx) error {
		return tx.SetText(v.Value)
	}, engine.Tag(TagUpdateValue), engine.Discrete())
	if err != nil {
		h.Logger().Warn("replace value failed", "error", err)
	}
}

func (*Update) insertQuickly(h Host) {
	dispatcher.Dispatch(h.Bus(), dispatcher.ClearHideMenuTimeout, struct{}{})
	err := h.Engine().Update(func(tx *engine.Tx) error {
		if tx.Selection() == nil {
			tx.SelectEnd()
		}
		return tx.InsertText(QuickInsertTrigger)
	}, engine.Tag(TagInsertQuickly), engine.Discrete())
	if err != nil {
		h.Logger().Warn("quick insert failed", "error", err)
	}
}
