package list

import (
	"context"

	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// Tx is the read-check-upsert surface available inside one store transaction.
type Tx interface {
	// Get returns the entry for key; ok is false when absent.
	Get(ctx context.Context, key Key) (e Entry, ok bool, err error)
	// Upsert inserts or replaces the entry under its key and returns it with
	// server-assigned timestamps.
	Upsert(ctx context.Context, e Entry) (Entry, error)
	// Delete removes the entry; removed is false when nothing matched.
	Delete(ctx context.Context, key Key) (removed bool, err error)
}

// Store is a user list store. InTx commits when fn returns nil; any failure to
// commit is reported as domain.ErrStoreCommit.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	// ListByUser returns entries ordered by rating desc (unrated last) then
	// most recently updated. An empty kind returns every kind.
	ListByUser(ctx context.Context, userID string, kind title.Kind) ([]Entry, error)
}
