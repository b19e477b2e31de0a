package action

import (
	"context"

	domintent "github.com/kailas-cloud/animedex/internal/domain/intent"
	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// Detector extracts intents from a chat message.
type Detector interface {
	Detect(message string) []domintent.Intent
}

// Resolver maps a free-text title reference to the best index candidate.
type Resolver interface {
	ResolveTitle(ctx context.Context, kind title.Kind, ref string) (result.Result, error)
}
