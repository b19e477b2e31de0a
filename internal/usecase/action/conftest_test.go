package action

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/domain"
	domintent "github.com/kailas-cloud/animedex/internal/domain/intent"
	"github.com/kailas-cloud/animedex/internal/domain/list"
	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// --- Mocks ---

// memStore is a transactional in-memory list store. Writes inside InTx are
// applied only when fn succeeds and commitErr is nil.
type memStore struct {
	mu        sync.Mutex
	entries   map[list.Key]list.Entry
	commitErr error
	txCount   int
}

func newMemStore() *memStore {
	return &memStore{entries: map[list.Key]list.Entry{}}
}

func (m *memStore) InTx(ctx context.Context, fn func(tx list.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++

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

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
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

// mockResolver resolves references by case-insensitive name lookup.
type mockResolver struct {
	titles map[title.Kind][]result.Result
	err    error
}

func (m *mockResolver) ResolveTitle(_ context.Context, kind title.Kind, ref string) (result.Result, error) {
	if m.err != nil {
		return result.Result{}, m.err
	}
	for _, r := range m.titles[kind] {
		if strings.Contains(strings.ToLower(r.Metadata.Title), strings.ToLower(ref)) {
			return r, nil
		}
	}
	return result.Result{}, domain.ErrNotFound
}

type mockDetector struct {
	intents []domintent.Intent
}

func (m *mockDetector) Detect(_ string) []domintent.Intent { return m.intents }

// --- Helpers ---

const testUser = "u1"

func testResolver() *mockResolver {
	return &mockResolver{titles: map[title.Kind][]result.Result{
		title.Anime: {
			{TitleID: 1, Metadata: title.Metadata{Title: "Cowboy Bebop"}},
			{TitleID: 2, Metadata: title.Metadata{Title: "Trigun"}},
		},
		title.Manga: {
			{TitleID: 2, Metadata: title.Metadata{Title: "Berserk"}},
		},
	}}
}

func newTestService(store *memStore, det Detector) *Service {
	if det == nil {
		det = &mockDetector{}
	}
	return New(det, testResolver(), store, nil, zap.NewNop())
}

func f64(v float64) *float64 { return &v }

func animeKey(id int64) list.Key {
	return list.Key{UserID: testUser, TitleID: id, Kind: title.Anime}
}
