package dispatcher

import "slices"

// SearchInputMarker marks the internal variable search surface. Blurring
// towards it does not close floating menus.
const SearchInputMarker = "var-search-input"

// Target describes the element that receives focus or a pointer event.
type Target struct {
	ID      string
	Markers []string
}

// HasMarker reports whether the target carries marker.
func (t *Target) HasMarker(marker string) bool {
	return t != nil && slices.Contains(t.Markers, marker)
}

// FocusEvent is the payload of Focus.
type FocusEvent struct{}

// BlurEvent is the payload of Blur. RelatedTarget is the element gaining
// focus, when known.
type BlurEvent struct {
	RelatedTarget *Target
}

// KeyEvent is the payload of the key commands. Handlers that consume the key
// call PreventDefault so the editor skips its own handling.
type KeyEvent struct {
	Key       string
	prevented bool
}

// PreventDefault marks the event as consumed.
func (e *KeyEvent) PreventDefault() { e.prevented = true }

// DefaultPrevented reports whether a handler consumed the event.
func (e *KeyEvent) DefaultPrevented() bool { return e.prevented }

// PointerEvent is the payload of Click. Target.ID is the element reference
// that was clicked.
type PointerEvent struct {
	Target    Target
	prevented bool
}

// PreventDefault marks the event as consumed.
func (e *PointerEvent) PreventDefault() { e.prevented = true }

// DefaultPrevented reports whether a handler consumed the event.
func (e *PointerEvent) DefaultPrevented() bool { return e.prevented }
