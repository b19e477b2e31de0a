package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/bootstrap"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	catalogrepo "github.com/kailas-cloud/animedex/internal/repository/catalog"
	cataloguc "github.com/kailas-cloud/animedex/internal/usecase/catalog"
)

const importChunk = 500

var importKind string

var importCmd = &cobra.Command{
	Use:   "import <file.jsonl|->",
	Short: "Load a JSON Lines catalog dump into Postgres",
	Long: `Upserts every title in the dump into the titles table.

Each line is one object with id (or mal_id), title, title_english, synopsis,
score (or mean), genres, popularity, media_type, status and image_url.
Run reindex afterwards to embed the new titles.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := title.ParseKind(importKind)
		if err != nil {
			return err
		}

		var in io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return fmt.Errorf("open dump: %w", err)
			}
			defer f.Close()
			in = f
		}

		titles, rep, err := cataloguc.Decode(in, kind)
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

		repo := catalogrepo.New(pool)
		written := 0
		for start := 0; start < len(titles); start += importChunk {
			chunk := titles[start:min(start+importChunk, len(titles))]
			n, err := repo.Upsert(ctx, chunk)
			written += n
			if err != nil {
				return fmt.Errorf("import after %d titles: %w", written, err)
			}
			env.logger.Debug("Import progress", zap.Int("written", written), zap.Int("total", len(titles)))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ imported %d %s titles (%d rejected)\n", written, kind, rep.Rejected)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importKind, "kind", "anime", "Media kind of the dump (anime|manga)")
}
