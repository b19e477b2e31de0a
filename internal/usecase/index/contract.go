package index

import (
	"context"

	"github.com/kailas-cloud/animedex/internal/db"
	"github.com/kailas-cloud/animedex/internal/domain/search/filter"
	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	"github.com/kailas-cloud/animedex/internal/repository/vector"
)

// Store is the vector record storage the adapter runs on.
type Store interface {
	EnsureIndex(ctx context.Context, kind title.Kind, dim int) (db.IndexInfo, error)
	Upsert(ctx context.Context, kind title.Kind, records []title.Record, vectors [][]float32) error
	Get(ctx context.Context, kind title.Kind, id int64) (vector.Stored, bool, error)
	KNN(ctx context.Context, kind title.Kind, vec []float32, k int, filters filter.Expression) ([]result.Result, error)
	Text(ctx context.Context, kind title.Kind, query string, k int, filters filter.Expression) ([]result.Result, error)
	Count(ctx context.Context, kind title.Kind) (int, error)
}
