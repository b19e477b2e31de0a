package lists

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/domain"
	"github.com/kailas-cloud/animedex/internal/domain/list"
	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// --- Mocks ---

// memStore applies writes made inside InTx only when fn succeeds and commitErr is nil.
type memStore struct {
	mu        sync.Mutex
	entries   map[list.Key]list.Entry
	commitErr error
	listErr   error
}

func newMemStore(entries ...list.Entry) *memStore {
	m := &memStore{entries: map[list.Key]list.Entry{}}
	for _, e := range entries {
		m.entries[e.Key] = e
	}
	return m
}

func (m *memStore) InTx(_ context.Context, fn func(tx list.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{entries: maps.Clone(m.entries)}
	if err := fn(tx); err != nil {
		return fmt.Errorf("tx: %w: %w", domain.ErrStoreCommit, err)
	}
	if m.commitErr != nil {
		return fmt.Errorf("commit: %w: %w", domain.ErrStoreCommit, m.commitErr)
	}
	m.entries = tx.entries
	return nil
}

func (m *memStore) ListByUser(_ context.Context, userID string, kind title.Kind) ([]list.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []list.Entry
	for k, e := range m.entries {
		if k.UserID == userID && (kind == "" || k.Kind == kind) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) get(key list.Key) (list.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e, ok
}

type memTx struct {
	entries map[list.Key]list.Entry
}

func (t *memTx) Get(_ context.Context, key list.Key) (list.Entry, bool, error) {
	e, ok := t.entries[key]
	return e, ok, nil
}

func (t *memTx) Upsert(_ context.Context, e list.Entry) (list.Entry, error) {
	t.entries[e.Key] = e
	return e, nil
}

func (t *memTx) Delete(_ context.Context, key list.Key) (bool, error) {
	if _, ok := t.entries[key]; !ok {
		return false, nil
	}
	delete(t.entries, key)
	return true, nil
}

type staticCatalog []title.Title

func (c staticCatalog) ByID(kind title.Kind, id int64) (title.Title, error) {
	for _, t := range c {
		if t.Kind == kind && t.ID == id {
			return t, nil
		}
	}
	return title.Title{}, fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
}

// --- Helpers ---

const testUser = "u1"

var errConnReset = errors.New("connection reset by peer")

func f64(v float64) *float64 { return &v }

func testCatalog() staticCatalog {
	return staticCatalog{
		{ID: 1, Name: "Cowboy Bebop", Kind: title.Anime},
		{ID: 2, Name: "Trigun", Kind: title.Anime},
		{ID: 2, Name: "Berserk", Kind: title.Manga},
	}
}

func newTestService(store *memStore) *Service {
	return New(store, testCatalog(), zap.NewNop())
}

func animeKey(id int64) list.Key {
	return list.Key{UserID: testUser, TitleID: id, Kind: title.Anime}
}
