package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/atlas-linker/internal/audit"
	"github.com/ajitpratap0/atlas-linker/internal/store"
)

func newAuditor(st *store.PostgresStore, logger *slog.Logger) *audit.Auditor {
	return audit.New(st, logger, cfg.Audit.PatternSet(),
		audit.WithProvenance(cfg.Audit.ProvenanceRules()...),
	)
}

func auditCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List automated owner edges that point at hospital-type companies",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("audit: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			report, err := newAuditor(st, logger).FindSuspectEdges(ctx)
			if err != nil {
				return fmt.Errorf("audit: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, report)
			}
			printSuspects(out, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the report as JSON")
	return cmd
}

func rollbackCmd() *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Delete the owner edges reported by audit",
		Long:  "Runs the audit and deletes every suspect property_owner edge. Without --apply only the edges that would be deleted are reported.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("rollback: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			a := newAuditor(st, logger)
			report, err := a.FindSuspectEdges(ctx)
			if err != nil {
				return fmt.Errorf("rollback: %w", err)
			}

			out := cmd.OutOrStdout()
			printSuspects(out, report)

			res, err := a.Rollback(ctx, report.EdgeIDs(), !apply)
			if err != nil {
				return fmt.Errorf("rollback: %w", err)
			}
			if res.DryRun {
				fmt.Fprintf(out, "\nDry run: %d edges would be deleted. Re-run with --apply to delete them.\n", res.Eligible)
				return nil
			}
			fmt.Fprintf(out, "\nDeleted %d edges.\n", res.Deleted)

			stats, err := st.Coverage(ctx)
			if err != nil {
				return fmt.Errorf("rollback: computing coverage: %w", err)
			}
			printCoverage(out, stats)
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "delete the edges instead of reporting them")
	return cmd
}

func printSuspects(w io.Writer, r *audit.SuspectReport) {
	fmt.Fprintf(w, "Scanned %d owner edges, %d automated, %d suspect across %d companies\n",
		r.Scanned, r.Automated, r.Suspect, len(r.ByCompany))
	for _, g := range r.ByCompany {
		fmt.Fprintf(w, "\n%s (company %d): %d edges\n", g.CompanyName, g.CompanyID, len(g.Edges))
		for _, e := range g.Edges {
			fmt.Fprintf(w, "  edge %-8d %-40s ccn=%-8s [%s] %s\n", e.ID, e.FacilityName, e.CCN, e.PatternTag, e.DataSource)
		}
	}
}
