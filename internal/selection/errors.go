package selection

import "errors"

var (
	// ErrNotPlaceholder is returned when mounting a controller on a key that
	// is not a placeholder node.
	ErrNotPlaceholder = errors.New("selection: node is not a placeholder")

	// ErrUnmounted is returned by operations on an unmounted controller.
	ErrUnmounted = errors.New("selection: controller unmounted")
)
