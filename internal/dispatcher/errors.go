package dispatcher

import "errors"

// Bus errors.
var (
	// ErrPanic indicates a handler panicked.
	ErrPanic = errors.New("dispatcher: handler panic")

	// ErrCancelled indicates a pre-dispatch hook cancelled a command.
	ErrCancelled = errors.New("dispatcher: command cancelled by hook")
)
