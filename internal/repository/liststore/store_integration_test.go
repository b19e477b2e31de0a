//go:build integration

package liststore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/animedex/internal/db/postgres/pgtest"
	"github.com/kailas-cloud/animedex/internal/domain"
	"github.com/kailas-cloud/animedex/internal/domain/list"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	"github.com/kailas-cloud/animedex/internal/repository/liststore"
)

func rating(v float64) *float64 { return &v }

func TestStore_UpsertGetDelete(t *testing.T) {
	store := liststore.New(pgtest.NewPool(t), 5*time.Second)
	ctx := context.Background()
	key := list.Key{UserID: "alice", TitleID: 5114, Kind: title.Anime}

	err := store.InTx(ctx, func(tx list.Tx) error {
		_, ok, err := tx.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		e, err := tx.Upsert(ctx, list.Entry{Key: key, Status: list.Watching, TitleName: "Fullmetal Alchemist: Brotherhood"})
		require.NoError(t, err)
		assert.False(t, e.AddedAt.IsZero(), "server assigns added_at")
		return nil
	})
	require.NoError(t, err)

	err = store.InTx(ctx, func(tx list.Tx) error {
		e, ok, err := tx.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		e.Status = list.Completed
		e.Rating = rating(10)
		_, err = tx.Upsert(ctx, e)
		return err
	})
	require.NoError(t, err)

	entries, err := store.ListByUser(ctx, "alice", title.Anime)
	require.NoError(t, err)
	require.Len(t, entries, 1, "upsert must not duplicate the key")
	assert.Equal(t, list.Completed, entries[0].Status)
	assert.Equal(t, 10.0, *entries[0].Rating)

	var removed [2]bool
	for i := range removed {
		require.NoError(t, store.InTx(ctx, func(tx list.Tx) error {
			var err error
			removed[i], err = tx.Delete(ctx, key)
			return err
		}))
	}
	assert.True(t, removed[0])
	assert.False(t, removed[1])

	entries, err = store.ListByUser(ctx, "alice", "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_RollbackOnError(t *testing.T) {
	store := liststore.New(pgtest.NewPool(t), 5*time.Second)
	ctx := context.Background()
	key := list.Key{UserID: "bob", TitleID: 1, Kind: title.Manga}

	boom := errors.New("boom")
	err := store.InTx(ctx, func(tx list.Tx) error {
		_, err := tx.Upsert(ctx, list.Entry{Key: key, Status: list.Planned})
		require.NoError(t, err)
		return boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreCommit)
	assert.ErrorIs(t, err, boom)

	entries, err := store.ListByUser(ctx, "bob", "")
	require.NoError(t, err)
	assert.Empty(t, entries, "failed transaction must not persist writes")
}

func TestStore_ListOrder(t *testing.T) {
	store := liststore.New(pgtest.NewPool(t), 5*time.Second)
	ctx := context.Background()

	require.NoError(t, store.InTx(ctx, func(tx list.Tx) error {
		for i, r := range []*float64{nil, rating(6), rating(9)} {
			_, err := tx.Upsert(ctx, list.Entry{
				Key:    list.Key{UserID: "carol", TitleID: int64(i + 1), Kind: title.Anime},
				Status: list.Completed,
				Rating: r,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))

	entries, err := store.ListByUser(ctx, "carol", title.Anime)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(3), entries[0].TitleID)
	assert.Equal(t, int64(2), entries[1].TitleID)
	assert.Nil(t, entries[2].Rating)
}

func TestStore_FavoriteRoundTrip(t *testing.T) {
	store := liststore.New(pgtest.NewPool(t), 5*time.Second)
	ctx := context.Background()
	key := list.Key{UserID: "dana", TitleID: 457, Kind: title.Anime}

	require.NoError(t, store.InTx(ctx, func(tx list.Tx) error {
		_, err := tx.Upsert(ctx, list.Entry{Key: key, Status: list.Watching, IsFavorite: true, TitleName: "Mushishi"})
		return err
	}))

	entries, err := store.ListByUser(ctx, "dana", "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsFavorite)
	assert.Nil(t, entries[0].Rating)

	require.NoError(t, store.InTx(ctx, func(tx list.Tx) error {
		e, ok, err := tx.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		e.IsFavorite = false
		_, err = tx.Upsert(ctx, e)
		return err
	}))

	entries, err = store.ListByUser(ctx, "dana", title.Anime)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].IsFavorite)
	assert.Equal(t, "Mushishi", entries[0].TitleName)
}
