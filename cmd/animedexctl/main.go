// Command animedexctl runs administrative tasks: schema migrations, catalog
// imports, index rebuilds and ad-hoc searches.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/animedex/internal/config"
	"github.com/kailas-cloud/animedex/internal/domain/title"
	logpkg "github.com/kailas-cloud/animedex/internal/logger"
	"github.com/kailas-cloud/animedex/internal/version"
)

var (
	envName  string
	logLevel string
	timeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "animedexctl",
	Short:         "animedex administration",
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envName, "env", config.GetEnv(), "Config environment (reads config/<env>.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Minute, "Operation timeout")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(searchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runtimeEnv is what every subcommand needs before doing work.
type runtimeEnv struct {
	cfg    config.Config
	logger *zap.Logger
}

// setup loads config and logger and returns a context cancelled on timeout or SIGINT/SIGTERM.
func setup() (context.Context, context.CancelFunc, *runtimeEnv, error) {
	cfg, err := config.Load(envName)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logger, err := logpkg.NewLogger(envName, level)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
		_ = logger.Sync()
	}, &runtimeEnv{cfg: cfg, logger: logger}, nil
}

// parseKinds expands "all" into every kind.
func parseKinds(raw string) ([]title.Kind, error) {
	if raw == "all" {
		return title.Kinds(), nil
	}
	k, err := title.ParseKind(raw)
	if err != nil {
		return nil, err
	}
	return []title.Kind{k}, nil
}
