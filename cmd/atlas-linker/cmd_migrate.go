package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/atlas-linker/internal/store"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	withMigrator := func(name string, fn func(cmd *cobra.Command, mg *store.Migrator, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			mg, err := store.NewMigrator(cfg.Database.URL, newLogger())
			if err != nil {
				return fmt.Errorf("migrate %s: %w", name, err)
			}
			defer func() { _ = mg.Close() }()
			if err := fn(cmd, mg, args); err != nil {
				return fmt.Errorf("migrate %s: %w", name, err)
			}
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: withMigrator("up", func(_ *cobra.Command, mg *store.Migrator, _ []string) error {
				return mg.Up()
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			RunE: withMigrator("down", func(_ *cobra.Command, mg *store.Migrator, _ []string) error {
				return mg.Down()
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: withMigrator("version", func(cmd *cobra.Command, mg *store.Migrator, _ []string) error {
				version, dirty, err := mg.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", version, dirty)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Mark a schema version as applied without running it",
			Args:  cobra.ExactArgs(1),
			RunE: withMigrator("force", func(_ *cobra.Command, mg *store.Migrator, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return mg.Force(v)
			}),
		},
	)
	return cmd
}
