package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/atlas-linker/internal/merge"
)

func mergeCmd() *cobra.Command {
	var (
		into   int64
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "merge --into SURVIVOR_ID COMPANY_ID...",
		Short: "Tombstone duplicate companies into a surviving company",
		Long:  "Moves every entity of each listed company to the survivor and marks the listed companies merged. All companies are validated before any change is written.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if into == 0 {
				return fmt.Errorf("merge: --into is required")
			}
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := strconv.ParseInt(a, 10, 64)
				if err != nil {
					return fmt.Errorf("merge: invalid company id %q: %w", a, err)
				}
				ids = append(ids, id)
			}

			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("merge: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			results, err := merge.New(st, logger, merge.WithDryRun(dryRun)).TombstoneAll(ctx, into, ids...)
			if err != nil {
				return fmt.Errorf("merge: %w", err)
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				verb := "Merged"
				if r.DryRun {
					verb = "Would merge"
				}
				fmt.Fprintf(out, "%s company %d %q into %d: %d entities moved, renamed to %q\n",
					verb, r.SupersededID, r.PreviousName, r.SurvivingID, r.EntitiesMoved, r.TombstonedName)
			}
			if dryRun {
				fmt.Fprintln(out, "(dry run, no changes applied)")
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&into, "into", 0, "ID of the surviving company")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and report without writing")
	return cmd
}
