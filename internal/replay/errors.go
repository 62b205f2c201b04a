package replay

import "errors"

// Sentinel errors for episodic memory operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrEmptyMemory indicates a sample was requested before any example
	// was pushed. Sampling an empty memory is undefined.
	ErrEmptyMemory = errors.New("episodic memory is empty")

	// ErrInvalidCapacity indicates a non-positive memory capacity.
	ErrInvalidCapacity = errors.New("invalid memory capacity")

	// ErrInvalidSampleSize indicates a non-positive sample size.
	ErrInvalidSampleSize = errors.New("invalid sample size")

	// ErrLengthMismatch indicates an example whose content and attention
	// mask have different lengths.
	ErrLengthMismatch = errors.New("length mismatch")
)
