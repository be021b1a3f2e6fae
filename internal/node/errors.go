package node

import (
	"errors"
	"fmt"
)

// Node model errors.
var (
	// ErrKindNotRegistered indicates a node kind is missing from the active registry.
	ErrKindNotRegistered = errors.New("node: kind not registered")

	// ErrDuplicateKind indicates a class was registered twice for the same kind.
	ErrDuplicateKind = errors.New("node: kind already registered")

	// ErrInvalidPayload indicates a payload of the wrong type was supplied for a kind.
	ErrInvalidPayload = errors.New("node: invalid payload")

	// ErrInvalidDocument indicates serialized document JSON could not be decoded.
	ErrInvalidDocument = errors.New("node: invalid document")
)

// KindError reports an operation that failed for a specific node kind.
type KindError struct {
	Op   string
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *KindError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *KindError) Unwrap() error {
	return e.Err
}

func kindError(op string, kind Kind, err error) error {
	return &KindError{Op: op, Kind: kind, Err: err}
}
