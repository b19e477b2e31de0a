package search

import (
	"context"

	"github.com/kailas-cloud/animedex/internal/domain/search/filter"
	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	"github.com/kailas-cloud/animedex/internal/usecase/fallback"
)

// Index is the query surface of the embedding index.
type Index interface {
	ReadOnly() bool
	QueryByText(ctx context.Context, kind title.Kind, text string, k int, filters filter.Expression) ([]result.Result, error)
	QueryByID(ctx context.Context, kind title.Kind, id int64, k int) ([]result.Result, error)
	GetByID(ctx context.Context, kind title.Kind, id int64) (result.Result, error)
	Count(ctx context.Context, kind title.Kind) (int, error)
}

// IndexHandle hands out the process-wide index, opening it on first use.
type IndexHandle interface {
	Get(ctx context.Context) (Index, error)
	Reset()
}

// Fallback answers keyword searches from the in-memory catalog.
type Fallback interface {
	Search(kind title.Kind, query string, k int, f fallback.Filters) []result.Result
	Lookup(kind title.Kind, id int64) (result.Result, bool)
}
