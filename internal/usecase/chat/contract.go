package chat

import (
	"context"

	domchat "github.com/kailas-cloud/animedex/internal/domain/chat"
	domintent "github.com/kailas-cloud/animedex/internal/domain/intent"
	"github.com/kailas-cloud/animedex/internal/domain/list"
	"github.com/kailas-cloud/animedex/internal/domain/search/request"
	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	"github.com/kailas-cloud/animedex/internal/usecase/search"
)

// Actions detects and executes list mutations in a message.
type Actions interface {
	DetectAndExecute(ctx context.Context, userID, message string) ([]domintent.Result, error)
}

// Searcher retrieves and reranks context titles.
type Searcher interface {
	Search(ctx context.Context, req request.Request) (search.Response, error)
	Rerank(results []result.Result, limit int) []result.Ranked
}

// Lists reads a user's list.
type Lists interface {
	ListByUser(ctx context.Context, userID string, kind title.Kind) ([]list.Entry, error)
}

// Generator produces the assistant reply.
type Generator interface {
	Generate(ctx context.Context, messages []domchat.Message) (string, error)
}
