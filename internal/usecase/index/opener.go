package index

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/domain"
	"github.com/kailas-cloud/animedex/internal/domain/title"
)

// Config configures the adapter opened by Opener.
type Config struct {
	// Dim is the embedding dimension new indexes are created with.
	Dim          int
	QueryTimeout time.Duration
}

// Opener builds adapters. It ensures both indexes exist and probes the embedder.
type Opener struct {
	store      Store
	docEmbed   domain.Embedder
	queryEmbed domain.Embedder
	cfg        Config
	batchTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// NewOpener creates an Opener. queryEmbed may be nil to reuse docEmbed for queries.
func NewOpener(
	store Store,
	docEmbed, queryEmbed domain.Embedder,
	cfg Config,
	batchTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *Opener {
	if queryEmbed == nil {
		queryEmbed = docEmbed
	}
	return &Opener{
		store:      store,
		docEmbed:   docEmbed,
		queryEmbed: queryEmbed,
		cfg:        cfg,
		batchTotal: batchTotal,
		logger:     logger,
	}
}

// Open returns a full adapter, or a read-only one when the stored dimension
// differs from the configured one or the embedder is unreachable while
// populated indexes exist. Anything else is domain.ErrIndexUnavailable.
func (o *Opener) Open(ctx context.Context) (*Adapter, error) {
	readOnly := false
	docs := 0

	for _, kind := range title.Kinds() {
		info, err := o.store.EnsureIndex(ctx, kind, o.cfg.Dim)
		if err != nil {
			return nil, fmt.Errorf("%w: ensure %s index: %w", domain.ErrIndexUnavailable, kind, err)
		}
		docs += info.NumDocs
		if info.VectorDim != 0 && info.VectorDim != o.cfg.Dim {
			o.logger.Warn("Index dimension differs from embedder, opening read-only",
				zap.String("kind", string(kind)),
				zap.Int("index_dim", info.VectorDim),
				zap.Int("embedder_dim", o.cfg.Dim),
				zap.Error(domain.ErrVectorDimMismatch),
			)
			readOnly = true
		}
	}

	if err := o.probe(ctx); err != nil {
		if docs == 0 {
			return nil, fmt.Errorf("%w: embedder probe: %w", domain.ErrIndexUnavailable, err)
		}
		o.logger.Warn("Embedder unreachable, opening index read-only", zap.Error(err))
		readOnly = true
	}

	return &Adapter{
		store:        o.store,
		docEmbed:     o.docEmbed,
		queryEmbed:   o.queryEmbed,
		readOnly:     readOnly,
		queryTimeout: o.cfg.QueryTimeout,
		batchTotal:   o.batchTotal,
		logger:       o.logger,
	}, nil
}

// probe prefers a provider health check; otherwise it embeds a short text and
// checks the dimension.
func (o *Opener) probe(ctx context.Context) error {
	if hc, ok := o.docEmbed.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("health check: %w", err)
		}
		return nil
	}
	res, err := o.docEmbed.Embed(ctx, "probe")
	if err != nil {
		return fmt.Errorf("probe embed: %w", err)
	}
	if o.cfg.Dim > 0 && len(res.Embedding) != o.cfg.Dim {
		return fmt.Errorf("probe returned %d dims, want %d: %w",
			len(res.Embedding), o.cfg.Dim, domain.ErrVectorDimMismatch)
	}
	return nil
}
