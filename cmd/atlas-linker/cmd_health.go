package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/atlas-linker/internal/store"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity to PostgreSQL and the schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			allOK := true

			st, err := newStore(ctx, logger)
			if err != nil {
				fmt.Fprintf(out, "PostgreSQL: FAIL (%v)\n", err)
				return fmt.Errorf("one or more health checks failed")
			}
			defer func() { _ = st.Close() }()

			if err := st.Ping(ctx); err != nil {
				fmt.Fprintf(out, "PostgreSQL: FAIL (%v)\n", err)
				allOK = false
			} else {
				fmt.Fprintln(out, "PostgreSQL: OK")
			}

			mg, err := store.NewMigrator(cfg.Database.URL, logger)
			if err != nil {
				fmt.Fprintf(out, "Schema: FAIL (%v)\n", err)
				allOK = false
			} else {
				defer func() { _ = mg.Close() }()
				version, dirty, verr := mg.Version()
				switch {
				case verr != nil:
					fmt.Fprintf(out, "Schema: FAIL (%v)\n", verr)
					allOK = false
				case version == 0 || dirty:
					fmt.Fprintf(out, "Schema: FAIL (version %d, dirty=%t)\n", version, dirty)
					allOK = false
				default:
					fmt.Fprintf(out, "Schema: OK (version %d)\n", version)
				}
			}

			if !allOK {
				return fmt.Errorf("one or more health checks failed")
			}
			return nil
		},
	}
}
