package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/animedex/internal/bootstrap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, done, env, err := setup()
		if err != nil {
			return err
		}
		defer done()

		pool, err := bootstrap.OpenPostgres(ctx, &env.cfg)
		if err != nil {
			return err
		}
		pool.Close()

		fmt.Fprintln(cmd.OutOrStdout(), "✓ schema up to date")
		return nil
	},
}
