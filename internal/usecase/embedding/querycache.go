package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/animedex/internal/domain"
)

// DefaultQueryCacheSize bounds the query embedding LRU.
const DefaultQueryCacheSize = 1024

// QueryCache keeps recent query embeddings in memory. Concurrent misses for
// the same text share one provider call.
type QueryCache struct {
	inner      domain.Embedder
	lru        *lru.Cache[string, []float32]
	group      singleflight.Group
	cacheTotal *prometheus.CounterVec
}

// NewQueryCache wraps inner with an LRU of size entries. cacheTotal has label
// "result" ("hit"/"miss") and may be nil.
func NewQueryCache(inner domain.Embedder, size int, cacheTotal *prometheus.CounterVec) (*QueryCache, error) {
	if size <= 0 {
		size = DefaultQueryCacheSize
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}
	return &QueryCache{inner: inner, lru: c, cacheTotal: cacheTotal}, nil
}

// Embed returns a cached vector or embeds text once for all concurrent callers.
// A hit reports zero tokens.
func (q *QueryCache) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if vec, ok := q.lru.Get(text); ok {
		q.inc("hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	q.inc("miss")

	v, err, _ := q.group.Do(text, func() (any, error) {
		res, err := q.inner.Embed(ctx, text)
		if err != nil {
			return domain.EmbeddingResult{}, err //nolint:wrapcheck // wrapped below
		}
		q.lru.Add(text, res.Embedding)
		return res, nil
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed query: %w", err)
	}
	return v.(domain.EmbeddingResult), nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (q *QueryCache) HealthCheck(ctx context.Context) error {
	if hc, ok := q.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// Len returns the number of cached queries.
func (q *QueryCache) Len() int { return q.lru.Len() }

func (q *QueryCache) inc(result string) {
	if q.cacheTotal != nil {
		q.cacheTotal.WithLabelValues(result).Inc()
	}
}
