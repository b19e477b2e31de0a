package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/animedex/internal/bootstrap"
	"github.com/kailas-cloud/animedex/internal/domain/search/request"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	catalogrepo "github.com/kailas-cloud/animedex/internal/repository/catalog"
	cataloguc "github.com/kailas-cloud/animedex/internal/usecase/catalog"
	"github.com/kailas-cloud/animedex/internal/usecase/fallback"
	"github.com/kailas-cloud/animedex/internal/usecase/index"
	searchuc "github.com/kailas-cloud/animedex/internal/usecase/search"
)

var (
	searchKind     string
	searchLimit    int
	searchGenre    string
	searchMinScore float64
	searchRerank   bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a search the way the API would and print the results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := title.ParseKind(searchKind)
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
		opener := bootstrap.NewOpener(&env.cfg, bootstrap.VectorRepo(&env.cfg, store), emb, nil, env.logger)
		handle := index.NewHandle(func(ctx context.Context) (searchuc.Index, error) {
			a, err := opener.Open(ctx)
			if err != nil {
				return nil, err
			}
			return a, nil
		})
		svc := searchuc.New(handle, fallback.New(catalog), searchuc.Config{
			Policy:           searchuc.ReattemptPolicy(env.cfg.Search.ReattemptPolicy),
			FailureThreshold: env.cfg.Search.FailureThreshold,
		}, searchuc.Metrics{}, env.logger)

		req := request.Request{
			Kind:  kind,
			Query: strings.Join(args, " "),
			Limit: searchLimit,
			Genre: searchGenre,
		}
		if cmd.Flags().Changed("min-score") {
			req.MinScore = &searchMinScore
		}

		start := time.Now()
		resp, err := svc.Search(ctx, req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d results via %s (mode %s) in %s\n", len(resp.Results), resp.Path, resp.Mode,
			time.Since(start).Round(time.Millisecond))
		if searchRerank {
			for i, r := range svc.Rerank(resp.Results, len(resp.Results)) {
				fmt.Fprintf(out, "%2d. [%d] %s  combined=%.3f similarity=%.3f\n",
					i+1, r.TitleID, r.Metadata.Title, r.CombinedScore, r.Similarity)
			}
			return nil
		}
		for i, r := range resp.Results {
			fmt.Fprintf(out, "%2d. [%d] %s  similarity=%.3f  %s\n",
				i+1, r.TitleID, r.Metadata.Title, r.Similarity, r.Metadata.GenreString())
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchKind, "kind", "anime", "Media kind (anime|manga)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", request.DefaultLimit, "Number of results")
	searchCmd.Flags().StringVar(&searchGenre, "genre", "", "Only titles with this genre")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0, "Only titles scored at least this")
	searchCmd.Flags().BoolVar(&searchRerank, "rerank", false, "Order by combined similarity, score and popularity")
}
