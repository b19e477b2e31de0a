// Package reindex rebuilds the embedding index from the catalog.
package reindex

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/animedex/internal/domain"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	"github.com/kailas-cloud/animedex/internal/usecase/index"
)

// MinSynopsisLength is the shortest synopsis worth embedding.
const MinSynopsisLength = 20

// Catalog lists the titles of one kind.
type Catalog interface {
	ByKind(kind title.Kind) []title.Title
}

// Indexer writes records to the embedding index.
type Indexer interface {
	UpsertBatch(ctx context.Context, kind title.Kind, records []title.Record, batchSize int) (index.UpsertReport, error)
	Count(ctx context.Context, kind title.Kind) (int, error)
}

// Dropper removes an index with its records.
type Dropper interface {
	DropIndex(ctx context.Context, kind title.Kind) error
}

// OpenFunc opens the index for writing. It runs after any drop so the index
// is recreated before the first batch.
type OpenFunc func(ctx context.Context) (Indexer, error)

// Options controls one run.
type Options struct {
	BatchSize int
	// Drop removes the existing index first.
	Drop bool
}

// Report summarises a run.
type Report struct {
	Total   int
	Skipped int
	Batches int
	Indexed int
	// IndexSize is the record count of the index after the run; -1 when it could not be read.
	IndexSize int
}

// Service runs reindexes.
type Service struct {
	catalog Catalog
	dropper Dropper
	open    OpenFunc
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a reindex service. limiter paces batches; nil runs unthrottled.
func New(catalog Catalog, dropper Dropper, open OpenFunc, limiter *rate.Limiter, logger *zap.Logger) *Service {
	return &Service{catalog: catalog, dropper: dropper, open: open, limiter: limiter, logger: logger}
}

// Run projects every eligible catalog title of kind and upserts it in batches.
// The report counts what was committed before any error.
func (s *Service) Run(ctx context.Context, kind title.Kind, opts Options) (Report, error) {
	if !kind.IsValid() {
		return Report{}, fmt.Errorf("invalid kind %q: %w", kind, domain.ErrValidation)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = index.DefaultBatchSize
	}

	titles := s.catalog.ByKind(kind)
	rep := Report{Total: len(titles)}
	records := make([]title.Record, 0, len(titles))
	for i := range titles {
		if !eligible(&titles[i]) {
			rep.Skipped++
			continue
		}
		records = append(records, title.NewRecord(&titles[i]))
	}

	if opts.Drop {
		if err := s.dropper.DropIndex(ctx, kind); err != nil {
			return rep, fmt.Errorf("drop index: %w", err)
		}
		s.logger.Info("Dropped index", zap.String("kind", string(kind)))
	}

	idx, err := s.open(ctx)
	if err != nil {
		return rep, fmt.Errorf("open index: %w", err)
	}

	s.logger.Info("Reindex started",
		zap.String("kind", string(kind)),
		zap.Int("records", len(records)),
		zap.Int("skipped", rep.Skipped),
		zap.Int("batch_size", opts.BatchSize),
	)

	for start := 0; start < len(records); start += opts.BatchSize {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return rep, fmt.Errorf("wait for rate limit: %w", err)
			}
		}
		batch := records[start:min(start+opts.BatchSize, len(records))]
		if _, err := idx.UpsertBatch(ctx, kind, batch, len(batch)); err != nil {
			return rep, fmt.Errorf("upsert records %d-%d: %w", start, start+len(batch)-1, err)
		}
		rep.Batches++
		rep.Indexed += len(batch)
		s.logger.Debug("Reindex progress",
			zap.String("kind", string(kind)),
			zap.Int("indexed", rep.Indexed),
			zap.Int("total", len(records)),
		)
	}

	rep.IndexSize = -1
	if n, err := idx.Count(ctx, kind); err != nil {
		s.logger.Warn("Index size unavailable", zap.String("kind", string(kind)), zap.Error(err))
	} else {
		rep.IndexSize = n
	}

	s.logger.Info("Reindex finished",
		zap.String("kind", string(kind)),
		zap.Int("indexed", rep.Indexed),
		zap.Int("batches", rep.Batches),
		zap.Int("index_size", rep.IndexSize),
	)
	return rep, nil
}

func eligible(t *title.Title) bool {
	return utf8.RuneCountInString(strings.TrimSpace(t.Synopsis)) >= MinSynopsisLength
}
