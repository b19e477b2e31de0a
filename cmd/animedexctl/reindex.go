package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/animedex/internal/bootstrap"
	"github.com/kailas-cloud/animedex/internal/domain"
	catalogrepo "github.com/kailas-cloud/animedex/internal/repository/catalog"
	cataloguc "github.com/kailas-cloud/animedex/internal/usecase/catalog"
	"github.com/kailas-cloud/animedex/internal/usecase/reindex"
)

var (
	reindexKind      string
	reindexDrop      bool
	reindexBatchSize int
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Embed catalog titles into the vector index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		kinds, err := parseKinds(reindexKind)
		if err != nil {
			return err
		}

		ctx, done, env, err := setup()
		if err != nil {
			return err
		}
		defer done()

		pool, err := bootstrap.OpenPostgres(ctx, &env.cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		catalog := cataloguc.New(catalogrepo.New(pool))
		if err := catalog.Load(ctx); err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}

		store, err := bootstrap.OpenStore(ctx, &env.cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		emb, err := bootstrap.BuildEmbedders(&env.cfg, store, env.logger)
		if err != nil {
			return err
		}
		repo := bootstrap.VectorRepo(&env.cfg, store)
		opener := bootstrap.NewOpener(&env.cfg, repo, emb, nil, env.logger)

		var limiter *rate.Limiter
		if r := env.cfg.Reindex.RatePerSec; r > 0 {
			limiter = rate.NewLimiter(rate.Limit(r), env.cfg.Reindex.Burst)
		}

		svc := reindex.New(catalog, repo, func(ctx context.Context) (reindex.Indexer, error) {
			a, err := opener.Open(ctx)
			if err != nil {
				return nil, err
			}
			return a, nil
		}, limiter, env.logger)

		batchSize := reindexBatchSize
		if batchSize <= 0 {
			batchSize = env.cfg.Index.BatchSize
		}

		out := cmd.OutOrStdout()
		for _, kind := range kinds {
			rep, err := svc.Run(ctx, kind, reindex.Options{BatchSize: batchSize, Drop: reindexDrop})
			if errors.Is(err, domain.ErrIndexReadOnly) {
				return fmt.Errorf("%s index dimension differs from the embedder, rerun with --drop: %w", kind, err)
			}
			if err != nil {
				return fmt.Errorf("reindex %s (indexed %d of %d): %w", kind, rep.Indexed, rep.Total, err)
			}
			fmt.Fprintf(out, "✓ %s: indexed %d titles in %d batches, skipped %d without synopsis\n",
				kind, rep.Indexed, rep.Batches, rep.Skipped)
			if rep.IndexSize >= 0 {
				fmt.Fprintf(out, "  %s index now holds %d records\n", kind, rep.IndexSize)
			}
		}
		return nil
	},
}

func init() {
	reindexCmd.Flags().StringVar(&reindexKind, "kind", "all", "Media kind to index (anime|manga|all)")
	reindexCmd.Flags().BoolVar(&reindexDrop, "drop", false, "Drop the existing index and its records first")
	reindexCmd.Flags().IntVar(&reindexBatchSize, "batch-size", 0, "Records per embedding batch (default: index.batch_size)")
}
