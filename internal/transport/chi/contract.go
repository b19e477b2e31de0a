package chi

import (
	"context"

	domchat "github.com/kailas-cloud/animedex/internal/domain/chat"
	"github.com/kailas-cloud/animedex/internal/domain/list"
	"github.com/kailas-cloud/animedex/internal/domain/search/request"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	chatuc "github.com/kailas-cloud/animedex/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/animedex/internal/usecase/health"
	listsuc "github.com/kailas-cloud/animedex/internal/usecase/lists"
	recommenduc "github.com/kailas-cloud/animedex/internal/usecase/recommend"
	searchuc "github.com/kailas-cloud/animedex/internal/usecase/search"
)

// Searcher answers free-text and similarity queries.
type Searcher interface {
	Search(ctx context.Context, req request.Request) (searchuc.Response, error)
	FindSimilar(ctx context.Context, req request.Similar) (searchuc.Response, error)
	Title(ctx context.Context, kind title.Kind, id int64) (searchuc.Response, error)
}

// Chatter runs one chat turn.
type Chatter interface {
	Turn(ctx context.Context, userID, message string, history []domchat.Message) (chatuc.Reply, error)
}

// Recommender builds personal and title-seeded recommendations.
type Recommender interface {
	ForUser(ctx context.Context, userID string, kind title.Kind, limit int) (recommenduc.Recommendations, error)
	ForTitle(ctx context.Context, userID string, kind title.Kind, id int64, limit int) (recommenduc.Recommendations, error)
}

// Lists reads and edits user lists.
type Lists interface {
	ListByUser(ctx context.Context, userID string, kind title.Kind) ([]list.Entry, error)
	Add(ctx context.Context, userID string, req listsuc.AddRequest) (list.Entry, error)
	Update(ctx context.Context, key list.Key, p listsuc.Patch) (list.Entry, error)
	Remove(ctx context.Context, key list.Key) error
	Stats(ctx context.Context, userID string, kind title.Kind) (listsuc.Stats, error)
}

// HealthChecker reports dependency health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
