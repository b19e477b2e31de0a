package health

import (
	"context"

	"github.com/kailas-cloud/animedex/internal/domain/search/mode"
	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// Pinger checks a datastore connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// Search exposes the current search mode and the index record counts.
type Search interface {
	Mode() mode.Mode
	IndexSizes(ctx context.Context) (map[title.Kind]int, error)
}
