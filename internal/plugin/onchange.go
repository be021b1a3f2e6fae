package plugin

import (
	"github.com/dshills/promptslot/internal/engine"
)

// OnChange reports the document text after every committed update.
type OnChange struct {
	fn            func(text string)
	skipSelection bool
}

// NewOnChange creates the plugin. With skipSelectionOnly set, commits that
// only moved the selection are not reported.
func NewOnChange(fn func(text string), skipSelectionOnly bool) *OnChange {
	return &OnChange{fn: fn, skipSelection: skipSelectionOnly}
}

// Name implements Plugin.
func (*OnChange) Name() string { return "on-change" }

// Register implements Plugin.
func (o *OnChange) Register(h Host) (func(), error) {
	if o.fn == nil {
		return func() {}, nil
	}
	remove := h.Engine().OnUpdate(func(info engine.UpdateInfo) {
		if o.skipSelection && !info.ContentChanged {
			return
		}
		o.fn(info.Text)
	})
	return remove, nil
}
