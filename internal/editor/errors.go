package editor

import "errors"

var (
	// ErrReadOnly is returned by editing methods of a read-only editor.
	ErrReadOnly = errors.New("editor: read-only")

	// ErrClosed is returned by methods of a closed editor.
	ErrClosed = errors.New("editor: closed")

	// ErrNotPlaceholder is returned when decorating a key that is not a
	// placeholder node.
	ErrNotPlaceholder = errors.New("editor: not a placeholder")
)
