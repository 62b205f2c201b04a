package checkpoint

import "errors"

// Common errors returned by checkpoint stores.
var (
	// ErrNotFound indicates no checkpoint exists for the requested
	// task order and epoch.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("checkpoint store is closed")
)
