// Package metrics provides batch pass counters using stdlib expvar.
// Counters are process-wide and exported on /debug/vars when an HTTP
// server is mounted in the binary.
package metrics

import "expvar"

// Linker counters.
var (
	LinkCandidates      = expvar.NewInt("atlas_link_candidates_total")
	LinkMatchedExact    = expvar.NewInt("atlas_link_matched_exact_total")
	LinkMatchedRoot     = expvar.NewInt("atlas_link_matched_root_total")
	LinkMatchedAnchor   = expvar.NewInt("atlas_link_matched_anchor_total")
	LinkMatchedLocation = expvar.NewInt("atlas_link_matched_location_total")
	LinkAlreadyLinked   = expvar.NewInt("atlas_link_already_linked_total")
	LinkUnmatched       = expvar.NewInt("atlas_link_unmatched_total")
)

// Merge and audit counters.
var (
	CompaniesMerged = expvar.NewInt("atlas_companies_merged_total")
	EntitiesMoved   = expvar.NewInt("atlas_entities_moved_total")
	SuspectEdges    = expvar.NewInt("atlas_audit_suspect_edges_total")
	EdgesRolledBack = expvar.NewInt("atlas_audit_edges_rolled_back_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }

// Snapshot returns the current value of every counter in this package.
func Snapshot() map[string]int64 {
	all := []struct {
		name string
		v    *expvar.Int
	}{
		{"atlas_link_candidates_total", LinkCandidates},
		{"atlas_link_matched_exact_total", LinkMatchedExact},
		{"atlas_link_matched_root_total", LinkMatchedRoot},
		{"atlas_link_matched_anchor_total", LinkMatchedAnchor},
		{"atlas_link_matched_location_total", LinkMatchedLocation},
		{"atlas_link_already_linked_total", LinkAlreadyLinked},
		{"atlas_link_unmatched_total", LinkUnmatched},
		{"atlas_companies_merged_total", CompaniesMerged},
		{"atlas_entities_moved_total", EntitiesMoved},
		{"atlas_audit_suspect_edges_total", SuspectEdges},
		{"atlas_audit_edges_rolled_back_total", EdgesRolledBack},
	}
	out := make(map[string]int64, len(all))
	for _, c := range all {
		out[c.name] = c.v.Value()
	}
	return out
}
