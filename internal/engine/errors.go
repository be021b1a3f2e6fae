package engine

import "errors"

// Errors returned by engine operations.
var (
	// ErrNodeNotFound indicates a key does not name a node in the document.
	ErrNodeNotFound = errors.New("engine: node not found")

	// ErrInvalidPoint indicates a selection point does not resolve to a live node.
	ErrInvalidPoint = errors.New("engine: invalid selection point")

	// ErrNotPlaceholder indicates an operation that requires a placeholder node
	// was given some other node.
	ErrNotPlaceholder = errors.New("engine: node is not a placeholder")

	// ErrNotInline indicates an operation that requires an inline node was
	// given a paragraph or the root.
	ErrNotInline = errors.New("engine: node is not inline")

	// ErrTxClosed indicates a transaction was used after its update returned.
	ErrTxClosed = errors.New("engine: transaction closed")

	// ErrTransformLoop indicates registered transforms kept producing dirty
	// nodes past the configured round limit.
	ErrTransformLoop = errors.New("engine: transforms did not converge")
)

// ErrNodeExists indicates an inserted node carries a key already present in
// the document.
var ErrNodeExists = errors.New("engine: node already in document")
