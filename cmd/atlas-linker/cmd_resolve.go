package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/atlas-linker/internal/resolve"
	"github.com/ajitpratap0/atlas-linker/pkg/normalize"
)

// resolution is the preview of one name.
type resolution struct {
	Name      string `json:"name"`
	Canonical string `json:"canonical"`
	Root      string `json:"root"`
	RootValid bool   `json:"root_valid"`
	ExactHit  *int64 `json:"exact_entity_id,omitempty"`
	RootHit   *int64 `json:"root_entity_id,omitempty"`
	Ambiguous bool   `json:"ambiguous"`
}

func previewName(idx *resolve.Index, name string) resolution {
	r := resolution{
		Name:      name,
		Canonical: normalize.Canonicalize(name),
		Root:      normalize.RootKey(name),
	}
	r.RootValid = normalize.ValidRoot(r.Root)
	if id, ok := idx.ResolveExact(r.Canonical); ok {
		r.ExactHit = &id
	}
	if id, ok := idx.ResolveRoot(r.Root); ok {
		r.RootHit = &id
	}
	r.Ambiguous = idx.Ambiguous(r.Canonical) || idx.Ambiguous(r.Root)
	return r
}

func resolveCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "resolve NAME...",
		Short: "Show how party names canonicalize and which entities they resolve to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("resolve: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			idx, err := resolve.Build(ctx, st, resolve.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("resolve: building index: %w", err)
			}

			results := make([]resolution, 0, len(args))
			for _, name := range args {
				results = append(results, previewName(idx, name))
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return printJSON(out, results)
			}
			for _, r := range results {
				printResolution(out, r)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print results as JSON")
	return cmd
}

func printResolution(w io.Writer, r resolution) {
	fmt.Fprintf(w, "%q\n", r.Name)
	fmt.Fprintf(w, "  canonical: %q\n", r.Canonical)
	validity := "valid"
	if !r.RootValid {
		validity = "too short"
	}
	fmt.Fprintf(w, "  root:      %q (%s)\n", r.Root, validity)
	switch {
	case r.ExactHit != nil:
		fmt.Fprintf(w, "  match:     entity %d (exact)\n", *r.ExactHit)
	case r.RootHit != nil:
		fmt.Fprintf(w, "  match:     entity %d (root)\n", *r.RootHit)
	default:
		fmt.Fprintln(w, "  match:     none")
	}
	if r.Ambiguous {
		fmt.Fprintln(w, "  warning:   key is claimed by more than one company")
	}
}
