package index

import (
	"context"
	"sync"
)

// Handle initialises a resource once and caches the outcome, success or
// error, until Reset. Concurrent Get calls wait for the first to finish.
// An error caused by the caller's own context being done is not cached.
type Handle[T any] struct {
	open func(ctx context.Context) (T, error)

	mu    sync.Mutex
	done  bool
	value T
	err   error
}

// NewHandle creates a handle around open.
func NewHandle[T any](open func(ctx context.Context) (T, error)) *Handle[T] {
	return &Handle[T]{open: open}
}

// Get returns the cached outcome, running open on first use.
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done {
		return h.value, h.err
	}
	v, err := h.open(ctx)
	if err != nil && ctx.Err() != nil {
		var zero T
		return zero, err
	}
	h.value, h.err, h.done = v, err, true
	return v, err
}

// Reset drops the cached outcome so the next Get opens again.
func (h *Handle[T]) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	var zero T
	h.value, h.err, h.done = zero, nil, false
}
