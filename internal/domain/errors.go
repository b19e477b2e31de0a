package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a title or record absent from the catalog or index.
	ErrNotFound = errors.New("not found")
	// ErrValidation signals a malformed request.
	ErrValidation = errors.New("validation failed")

	// ErrIndexUnavailable signals that the vector index could not be opened or queried.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrIndexReadOnly signals a write against an index opened in degraded read-only mode.
	ErrIndexReadOnly = errors.New("index opened read-only")
	// ErrVectorDimMismatch signals that the stored index dimension differs from the embedder.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrStoreCommit signals a list store transaction that did not commit.
	ErrStoreCommit = errors.New("store commit failed")
	// ErrTimeout signals a deadline hit on an index query or store transaction.
	ErrTimeout = errors.New("operation timed out")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGeneratorError signals a chat completion provider failure.
	ErrGeneratorError = errors.New("generator error")
)

// WrapTimeout marks context deadline errors with ErrTimeout so callers can tell
// a slow dependency from a broken one. Other errors pass through unchanged.
func WrapTimeout(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
