// Package bootstrap builds the dependencies shared by the API server and the admin CLI.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/config"
	"github.com/kailas-cloud/animedex/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/animedex/internal/db/redis"
	"github.com/kailas-cloud/animedex/internal/domain"
	"github.com/kailas-cloud/animedex/internal/metrics"
	"github.com/kailas-cloud/animedex/internal/repository/embcache"
	"github.com/kailas-cloud/animedex/internal/repository/vector"
	openaiTransport "github.com/kailas-cloud/animedex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/animedex/internal/usecase/embedding"
	"github.com/kailas-cloud/animedex/internal/usecase/index"
)

// OpenStore connects to Redis / Valkey and waits until it answers.
func OpenStore(ctx context.Context, cfg *config.Config) (*dbRedis.Store, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create index store: %w", err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("index store not ready: %w", err)
	}
	return store, nil
}

// OpenPostgres connects the list store pool and applies migrations.
func OpenPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := postgres.Connect(ctx, postgres.Config{
		DSN:      cfg.Postgres.DSN,
		MaxConns: cfg.Postgres.MaxConns,
	}, postgres.WithAfterConnect(setUTC))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return pool, nil
}

// setUTC pins list timestamps to UTC regardless of the server default.
func setUTC(ctx context.Context, conn *pgx.Conn) error {
	if _, err := conn.Exec(ctx, "SET TIME ZONE 'UTC'"); err != nil {
		return fmt.Errorf("set session time zone: %w", err)
	}
	return nil
}

// Embedders is the document and query side of the active vectorizer.
type Embedders struct {
	Doc      domain.Embedder
	Query    domain.Embedder
	Provider string
	Model    string
	Dim      int
}

// BuildEmbedders assembles the decorator chain:
// OpenAI -> persistent cache -> instrumented -> instruction.
// kv may be nil to skip the persistent cache.
func BuildEmbedders(cfg *config.Config, kv *dbRedis.Store, logger *zap.Logger) (Embedders, error) {
	name, vc, pc, err := cfg.Embedding.Active()
	if err != nil {
		return Embedders{}, fmt.Errorf("select vectorizer: %w", err)
	}
	if vc.Model == "" {
		vc.Model = domain.DefaultEmbeddingModel
	}
	if vc.Dimensions == 0 {
		vc.Dimensions = domain.DefaultEmbeddingDim
	}

	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     pc.APIKey,
		BaseURL:    pc.BaseURL,
		Model:      vc.Model,
		Dimensions: vc.Dimensions,
		Provider:   vc.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if kv != nil {
		namespace := fmt.Sprintf("%s:%s:%d", name, vc.Model, vc.Dimensions)
		ttl := time.Duration(cfg.Embedding.CacheTTLHours) * time.Hour
		embedder = embcache.New(base, kv, namespace, ttl, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, vc.Provider, vc.Model, vc.MaxBatch, logger)

	return Embedders{
		Doc:      withInstruction(embedder, vc.DocumentInstruction),
		Query:    withInstruction(embedder, vc.QueryInstruction),
		Provider: vc.Provider,
		Model:    vc.Model,
		Dim:      vc.Dimensions,
	}, nil
}

// withInstruction is the outermost decorator so cache keys include the instruction.
func withInstruction(e domain.Embedder, instruction string) domain.Embedder {
	if instruction == "" {
		return e
	}
	return domain.NewInstructionEmbedder(e, instruction)
}

// VectorRepo creates the per-kind FT index repository.
func VectorRepo(cfg *config.Config, store *dbRedis.Store) *vector.Repo {
	return vector.New(store, vector.HNSWConfig{
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})
}

// NewOpener creates the index opener. queryEmbed overrides emb.Query when non-nil.
func NewOpener(
	cfg *config.Config, repo *vector.Repo, emb Embedders, queryEmbed domain.Embedder, logger *zap.Logger,
) *index.Opener {
	if queryEmbed == nil {
		queryEmbed = emb.Query
	}
	return index.NewOpener(repo, emb.Doc, queryEmbed, index.Config{
		Dim:          emb.Dim,
		QueryTimeout: cfg.Timeouts.IndexQuery(),
	}, metrics.IndexUpsertBatchesTotal, logger)
}
