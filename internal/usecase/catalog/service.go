// Package catalog holds the read-only in-memory view of every title.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/kailas-cloud/animedex/internal/domain"
	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// Source loads all titles of a kind.
type Source interface {
	Load(ctx context.Context, kind title.Kind) ([]title.Title, error)
}

// Catalog is an immutable snapshot of titles, replaced wholesale by Load.
type Catalog struct {
	src Source

	mu     sync.RWMutex
	byKind map[title.Kind][]title.Title
	byID   map[title.Kind]map[int64]int
}

// New creates an empty catalog backed by src.
func New(src Source) *Catalog {
	return &Catalog{
		src:    src,
		byKind: map[title.Kind][]title.Title{},
		byID:   map[title.Kind]map[int64]int{},
	}
}

// NewStatic builds a loaded catalog from an in-memory slice. Titles without a
// valid kind are treated as anime.
func NewStatic(titles []title.Title) *Catalog {
	c := New(nil)
	grouped := map[title.Kind][]title.Title{}
	for _, t := range titles {
		if !t.Kind.IsValid() {
			t.Kind = title.Anime
		}
		grouped[t.Kind] = append(grouped[t.Kind], t)
	}
	for kind, ts := range grouped {
		c.swap(kind, ts)
	}
	return c
}

// Load replaces the snapshot for every kind. On error the previous snapshot stays.
func (c *Catalog) Load(ctx context.Context) error {
	loaded := make(map[title.Kind][]title.Title, len(title.Kinds()))
	for _, kind := range title.Kinds() {
		ts, err := c.src.Load(ctx, kind)
		if err != nil {
			return fmt.Errorf("load %s catalog: %w", kind, err)
		}
		loaded[kind] = ts
	}
	for kind, ts := range loaded {
		c.swap(kind, ts)
	}
	return nil
}

func (c *Catalog) swap(kind title.Kind, ts []title.Title) {
	idx := make(map[int64]int, len(ts))
	for i := range ts {
		idx[ts[i].ID] = i
	}
	c.mu.Lock()
	c.byKind[kind] = ts
	c.byID[kind] = idx
	c.mu.Unlock()
}

// ByKind returns the titles of kind. The slice is shared and must not be modified.
func (c *Catalog) ByKind(kind title.Kind) []title.Title {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byKind[kind]
}

// ByID returns a title; domain.ErrNotFound when absent.
func (c *Catalog) ByID(kind title.Kind, id int64) (title.Title, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[kind][id]
	if !ok {
		return title.Title{}, fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
	}
	return c.byKind[kind][i], nil
}

// Len returns the number of titles of kind.
func (c *Catalog) Len(kind title.Kind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byKind[kind])
}
