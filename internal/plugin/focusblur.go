package plugin

import (
	"time"

	"github.com/dshills/promptslot/internal/clock"
	"github.com/dshills/promptslot/internal/dispatcher"
)

// DefaultBlurEscapeDelay is the delay between a blur and the KEY_ESCAPE it
// schedules.
const DefaultBlurEscapeDelay = 200 * time.Millisecond

// FocusBlurHooks are the host's focus callbacks. Either may be nil.
type FocusBlurHooks struct {
	OnFocus func()
	OnBlur  func()
}

// FocusBlur handles FOCUS, BLUR and CLEAR_HIDE_MENU_TIMEOUT on the editor
// root.
type FocusBlur struct {
	hooks FocusBlurHooks
	delay time.Duration
}

// NewFocusBlur creates the plugin. A non-positive delay uses
// DefaultBlurEscapeDelay.
func NewFocusBlur(hooks FocusBlurHooks, delay time.Duration) *FocusBlur {
	if delay <= 0 {
		delay = DefaultBlurEscapeDelay
	}
	return &FocusBlur{hooks: hooks, delay: delay}
}

// Name implements Plugin.
func (f *FocusBlur) Name() string { return "focus-blur" }

// Delay returns the blur-to-escape delay.
func (f *FocusBlur) Delay() time.Duration { return f.delay }

// Register implements Plugin. Teardown cancels a pending escape.
func (f *FocusBlur) Register(h Host) (func(), error) {
	bus := h.Bus()
	escape := clock.NewDebouncer(h.Clock(), f.delay, func() {
		dispatcher.Dispatch(bus, dispatcher.KeyEscape, &dispatcher.KeyEvent{Key: "Escape"})
	})

	var td teardowns
	td.add(dispatcher.Register(bus, dispatcher.Focus, dispatcher.PriorityEditor, func(dispatcher.FocusEvent) bool {
		if f.hooks.OnFocus != nil {
			f.hooks.OnFocus()
		}
		return true
	}))
	td.add(dispatcher.Register(bus, dispatcher.Blur, dispatcher.PriorityEditor, func(ev dispatcher.BlurEvent) bool {
		if f.hooks.OnBlur != nil {
			f.hooks.OnBlur()
		}
		if !ev.RelatedTarget.HasMarker(dispatcher.SearchInputMarker) {
			escape.Call()
		}
		return true
	}))
	td.add(dispatcher.Register(bus, dispatcher.ClearHideMenuTimeout, dispatcher.PriorityEditor, func(struct{}) bool {
		if escape.Cancel() {
			h.Logger().Debug("blur escape cancelled")
		}
		return true
	}))
	td.add(func() { escape.Cancel() })
	return td.once(), nil
}
