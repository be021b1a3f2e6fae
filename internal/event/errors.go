package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for broadcast channels.
var (
	// ErrClosed is returned when publishing to or subscribing on a closed
	// channel.
	ErrClosed = errors.New("event: channel closed")

	// ErrInvalidEvent is returned when an event is missing its type or
	// carries an undecodable payload.
	ErrInvalidEvent = errors.New("event: invalid event")

	// ErrInvalidPattern is returned when a subscription pattern is empty or
	// malformed.
	ErrInvalidPattern = errors.New("event: invalid pattern")

	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = errors.New("event: handler cannot be nil")

	// ErrHandlerPanic is matched by PanicError.
	ErrHandlerPanic = errors.New("event: handler panicked")
)

// PanicError wraps a panic raised by a subscription handler.
type PanicError struct {
	SubscriptionID string
	Type           Type
	Value          any
	Stack          string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("event: handler panic for subscription %s on %s: %v", e.SubscriptionID, e.Type, e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}
