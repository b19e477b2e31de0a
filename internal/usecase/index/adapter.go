// Package index exposes the embedding index as a small query/upsert surface
// with a degraded read-only mode and a guarded process-wide handle.
package index

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/domain"
	"github.com/kailas-cloud/animedex/internal/domain/search/filter"
	"github.com/kailas-cloud/animedex/internal/domain/search/result"
	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// DefaultBatchSize is used when UpsertBatch gets a non-positive batch size.
const DefaultBatchSize = 100

// UpsertReport counts what UpsertBatch committed before returning.
type UpsertReport struct {
	Batches int
	Records int
}

// Adapter answers similarity queries for both media kinds.
type Adapter struct {
	store        Store
	docEmbed     domain.Embedder
	queryEmbed   domain.Embedder
	readOnly     bool
	queryTimeout time.Duration
	batchTotal   *prometheus.CounterVec
	logger       *zap.Logger
}

// ReadOnly reports whether the adapter was opened in degraded mode. Text
// queries then run as keyword queries and upserts are refused.
func (a *Adapter) ReadOnly() bool { return a.readOnly }

// UpsertBatch embeds and writes records in fixed-size batches, in order.
// The first failing batch stops the run; the report counts committed batches.
func (a *Adapter) UpsertBatch(
	ctx context.Context, kind title.Kind, records []title.Record, batchSize int,
) (UpsertReport, error) {
	var rep UpsertReport
	if a.readOnly {
		return rep, domain.ErrIndexReadOnly
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		batch := records[start:end]

		if err := a.upsertOne(ctx, kind, batch); err != nil {
			a.countBatch(kind, "error")
			a.logger.Error("Index batch failed",
				zap.String("kind", string(kind)),
				zap.Int("batch", rep.Batches),
				zap.Int("committed_records", rep.Records),
				zap.Error(err),
			)
			return rep, fmt.Errorf("batch %d: %w", rep.Batches, err)
		}
		a.countBatch(kind, "ok")
		rep.Batches++
		rep.Records += len(batch)
	}
	return rep, nil
}

func (a *Adapter) upsertOne(ctx context.Context, kind title.Kind, batch []title.Record) error {
	texts := make([]string, len(batch))
	for i := range batch {
		if err := batch[i].Metadata.Validate(); err != nil {
			return fmt.Errorf("record %d: %w: %w", batch[i].ID, domain.ErrValidation, err)
		}
		texts[i] = batch[i].Text
	}

	emb, err := domain.EmbedAll(ctx, a.docEmbed, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if err := a.store.Upsert(ctx, kind, batch, emb.Embeddings); err != nil {
		return fmt.Errorf("write batch: %w", domain.WrapTimeout(err))
	}
	return nil
}

func (a *Adapter) countBatch(kind title.Kind, res string) {
	if a.batchTotal != nil {
		a.batchTotal.WithLabelValues(string(kind), res).Inc()
	}
}

// QueryByText returns up to k results ordered by similarity descending.
func (a *Adapter) QueryByText(
	ctx context.Context, kind title.Kind, text string, k int, filters filter.Expression,
) ([]result.Result, error) {
	if k <= 0 {
		return nil, nil
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	var (
		results []result.Result
		err     error
	)
	if a.readOnly {
		results, err = a.store.Text(ctx, kind, text, k, filters)
	} else {
		var emb domain.EmbeddingResult
		emb, err = a.queryEmbed.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("vectorize query: %w", domain.WrapTimeout(err))
		}
		results, err = a.store.KNN(ctx, kind, emb.Embedding, k, filters)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", kind, domain.WrapTimeout(err))
	}
	return truncate(results, k), nil
}

// QueryByID returns up to k neighbours of a stored record, excluding itself.
// An unknown id yields an empty result.
func (a *Adapter) QueryByID(ctx context.Context, kind title.Kind, id int64, k int) ([]result.Result, error) {
	if k <= 0 {
		return []result.Result{}, nil
	}
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	stored, ok, err := a.store.Get(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("get seed %d: %w", id, domain.WrapTimeout(err))
	}
	if !ok {
		return []result.Result{}, nil
	}

	vec := stored.Vector
	if len(vec) == 0 {
		emb, err := a.docEmbed.Embed(ctx, stored.Text)
		if err != nil {
			return nil, fmt.Errorf("vectorize seed %d: %w", id, domain.WrapTimeout(err))
		}
		vec = emb.Embedding
	}

	neighbours, err := a.store.KNN(ctx, kind, vec, k+1, filter.Expression{})
	if err != nil {
		return nil, fmt.Errorf("neighbours of %d: %w", id, domain.WrapTimeout(err))
	}

	out := make([]result.Result, 0, len(neighbours))
	for _, r := range neighbours {
		if r.TitleID == id {
			continue
		}
		out = append(out, r)
	}
	return truncate(out, k), nil
}

// GetByID returns the stored record as a result with similarity 1.
func (a *Adapter) GetByID(ctx context.Context, kind title.Kind, id int64) (result.Result, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	stored, ok, err := a.store.Get(ctx, kind, id)
	if err != nil {
		return result.Result{}, fmt.Errorf("get %s %d: %w", kind, id, domain.WrapTimeout(err))
	}
	if !ok {
		return result.Result{}, fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
	}
	return result.Result{
		TitleID:    stored.ID,
		Metadata:   stored.Metadata,
		Document:   stored.Text,
		Similarity: 1,
	}, nil
}

// Count returns the number of indexed records of kind.
func (a *Adapter) Count(ctx context.Context, kind title.Kind) (int, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	n, err := a.store.Count(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, domain.WrapTimeout(err))
	}
	return n, nil
}

func (a *Adapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.queryTimeout)
}

func truncate(rs []result.Result, k int) []result.Result {
	if len(rs) > k {
		return rs[:k]
	}
	return rs
}

