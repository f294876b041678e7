package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func coverageCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Show the share of properties holding each relationship type",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("coverage: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			stats, err := st.Coverage(ctx)
			if err != nil {
				return fmt.Errorf("coverage: %w", err)
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			printCoverage(cmd.OutOrStdout(), stats)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print coverage as JSON")
	return cmd
}
