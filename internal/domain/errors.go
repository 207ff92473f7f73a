package domain

import "errors"

var (
	// ErrDimensionMismatch is returned when an embedding's length does not
	// match the dimension of the target index. The vector is rejected, never
	// truncated or padded.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrProviderUnavailable signals a failed or timed-out embedding or
	// generation call.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrIndexCorrupt signals that persisted index artifacts were unreadable
	// or inconsistent at load time. The index is reinitialized empty rather
	// than serving wrong results.
	ErrIndexCorrupt = errors.New("index artifacts corrupt")

	// ErrPartialIngestion signals that a document's chunks could not all be
	// embedded and indexed; already-indexed entries have been rolled back.
	ErrPartialIngestion = errors.New("partial ingestion")

	// ErrNotFound is returned by record store lookups that match nothing.
	ErrNotFound = errors.New("not found")
)
