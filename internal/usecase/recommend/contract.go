package recommend

import (
	"context"

	"github.com/kailas-cloud/animedex/internal/domain/list"
	"github.com/kailas-cloud/animedex/internal/domain/search/request"
	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	"github.com/kailas-cloud/animedex/internal/usecase/search"
)

// Similar finds neighbours of a stored title and reranks candidates.
type Similar interface {
	FindSimilar(ctx context.Context, req request.Similar) (search.Response, error)
	Rerank(results []result.Result, limit int) []result.Ranked
}

// Lists reads a user's list.
type Lists interface {
	ListByUser(ctx context.Context, userID string, kind title.Kind) ([]list.Entry, error)
}
