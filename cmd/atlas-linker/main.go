package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/atlas-linker/internal/config"
	"github.com/ajitpratap0/atlas-linker/internal/metrics"
	"github.com/ajitpratap0/atlas-linker/internal/models"
	"github.com/ajitpratap0/atlas-linker/internal/store"
)

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "atlas-linker",
		Short: "Resolve deal parties and maintain healthcare ownership graph edges",
		Long:  "atlas-linker canonicalizes free-text party names, links them to known entities, tombstones duplicate companies and audits misassigned relationships.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			newLogger().Debug("pass counters", "counters", metrics.Snapshot())
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		linkCmd(),
		mergeCmd(),
		auditCmd(),
		rollbackCmd(),
		coverageCmd(),
		resolveCmd(),
		migrateCmd(),
		healthCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newStore connects to PostgreSQL, applying migrations first when
// database.migrate_on_start is set.
func newStore(ctx context.Context, logger *slog.Logger) (*store.PostgresStore, error) {
	if cfg.Database.MigrateOnStart {
		if err := runMigrations(logger); err != nil {
			return nil, err
		}
	}
	return store.NewPostgresStore(ctx, store.PostgresConfig{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
}

func runMigrations(logger *slog.Logger) error {
	mg, err := store.NewMigrator(cfg.Database.URL, logger)
	if err != nil {
		return err
	}
	defer func() { _ = mg.Close() }()
	return mg.Up()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printCoverage(w io.Writer, stats *models.CoverageStats) {
	types := make([]string, 0, len(stats.ByType))
	for t := range stats.ByType {
		types = append(types, t)
	}
	sort.Strings(types)

	fmt.Fprintf(w, "Relationship coverage (%d properties):\n", stats.TotalProperties)
	if len(types) == 0 {
		fmt.Fprintln(w, "  no active relationships")
		return
	}
	for _, t := range types {
		fmt.Fprintf(w, "  %-20s %6d  %5.1f%%\n", t, stats.ByType[t], stats.Percent(t))
	}
}
