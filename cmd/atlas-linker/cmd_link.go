package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/atlas-linker/internal/linker"
	"github.com/ajitpratap0/atlas-linker/internal/models"
)

func linkCmd() *cobra.Command {
	var (
		role    string
		all     bool
		dryRun   bool
		noAnchor bool
		jsonOut  bool
	)

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link unresolved deal parties to entities",
		Long:  "Resolves every unresolved party of a role (seller, buyer, lender, borrower) on properties that lack the matching relationship, and inserts one edge per property.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if role == "" && !all {
				return fmt.Errorf("link: pass --role or --all")
			}
			if role != "" && all {
				return fmt.Errorf("link: --role and --all are mutually exclusive")
			}

			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("link: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			l := linker.New(st, logger,
				linker.WithDataSource(cfg.Linker.DataSource),
				linker.WithSampleSizes(cfg.Linker.SampleMatches, cfg.Linker.SampleMisses),
				linker.WithDryRun(dryRun),
				linker.WithOwnerAnchor(cfg.Linker.OwnerAnchor && !noAnchor),
			)

			var roles []models.PartyRole
			if role != "" {
				roles = []models.PartyRole{models.PartyRole(role)}
			}
			reports, err := l.LinkRoles(ctx, roles...)
			if err != nil {
				return fmt.Errorf("link: %w", err)
			}

			out := cmd.OutOrStdout()
			stats, err := st.Coverage(ctx)
			if err != nil {
				return fmt.Errorf("link: computing coverage: %w", err)
			}

			if jsonOut {
				return printJSON(out, map[string]any{"reports": reports, "coverage": stats})
			}
			for _, r := range reports {
				printLinkReport(out, r)
			}
			printCoverage(out, stats)
			return nil
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "party role to link: seller, buyer, lender or borrower")
	cmd.Flags().BoolVar(&all, "all", false, "link every role in turn")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve and report without inserting edges")
	cmd.Flags().BoolVar(&noAnchor, "no-anchor", false, "skip matching buyers and borrowers against their property's owner and operator")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the reports as JSON")
	return cmd
}

func printLinkReport(w io.Writer, r *linker.LinkReport) {
	fmt.Fprintf(w, "Link %s -> %s (run %s)\n", r.Role, r.RelationshipType, r.RunID)
	fmt.Fprintf(w, "  Candidates:      %d\n", r.Candidates)
	fmt.Fprintf(w, "  Matched:         %d (anchor %d, location %d, exact %d, root %d)\n", r.Matched, r.MatchedAnchor, r.MatchedLocation, r.MatchedExact, r.MatchedRoot)
	fmt.Fprintf(w, "  Already linked:  %d\n", r.AlreadyLinked)
	fmt.Fprintf(w, "  Skipped:         %d\n", r.Skipped)
	fmt.Fprintf(w, "  Unmatched:       %d\n", r.Unmatched)

	if len(r.SampleMatches) > 0 {
		fmt.Fprintln(w, "  Sample matches:")
		for _, m := range r.SampleMatches {
			fmt.Fprintf(w, "    property %d: %q -> entity %d [%s %q]\n", m.PropertyID, m.PartyName, m.EntityID, m.Strategy, m.Key)
		}
	}
	if len(r.SampleMisses) > 0 {
		fmt.Fprintln(w, "  Sample misses:")
		for _, m := range r.SampleMisses {
			fmt.Fprintf(w, "    property %d: %q (key %q)\n", m.PropertyID, m.PartyName, m.Key)
		}
	}
	if r.DryRun {
		fmt.Fprintln(w, "  (dry run, no edges inserted)")
	}
}
