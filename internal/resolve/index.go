// Package resolve builds the lookup tables that map canonical party names to
// graph entities.
package resolve

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/ajitpratap0/atlas-linker/internal/models"
	"github.com/ajitpratap0/atlas-linker/pkg/normalize"
)

// Source supplies the entity/company pairs an Index is built from.
type Source interface {
	ListActiveEntityPairs(ctx context.Context) ([]models.EntityPair, error)
}

// Stats describes the contents of a built Index.
type Stats struct {
	Pairs           int `json:"pairs"`
	Tombstoned      int `json:"tombstoned"`
	ExactKeys       int `json:"exact_keys"`
	RootKeys        int `json:"root_keys"`
	ExactCollisions int `json:"exact_collisions"`
	RootCollisions  int `json:"root_collisions"`
	AmbiguousKeys   int `json:"ambiguous_keys"`
}

// Option configures Build.
type Option func(*buildOptions)

type buildOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger used while building.
func WithLogger(logger *slog.Logger) Option {
	return func(o *buildOptions) { o.logger = logger }
}

type target struct {
	entityID  int64
	companyID int64
}

// Index is an immutable snapshot of the resolvable names in the graph.
// The first pair to claim a key keeps it. An Index is safe for concurrent use.
type Index struct {
	exact     map[string]target
	root      map[string]target
	ambiguous map[string]struct{}
	stats     Stats
}

// Build scans src and returns a fully populated Index. Pairs are processed in
// ascending entity ID order; tombstoned pairs are ignored even if src returns
// them.
func Build(ctx context.Context, src Source, opts ...Option) (*Index, error) {
	o := buildOptions{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	pairs, err := src.ListActiveEntityPairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading entity pairs: %w", err)
	}
	sorted := make([]models.EntityPair, len(pairs))
	copy(sorted, pairs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].EntityID < sorted[j].EntityID })

	idx := &Index{
		exact:     make(map[string]target),
		root:      make(map[string]target),
		ambiguous: make(map[string]struct{}),
	}
	for i := range sorted {
		p := &sorted[i]
		if p.Tombstoned() {
			idx.stats.Tombstoned++
			continue
		}
		idx.stats.Pairs++
		t := target{entityID: p.EntityID, companyID: p.CompanyID}

		keys := []string{normalize.Canonicalize(p.EntityName)}
		// An entity named like its company claims the shared key once.
		if companyKey := normalize.Canonicalize(p.CompanyName); companyKey != keys[0] {
			keys = append(keys, companyKey)
		}
		for _, key := range keys {
			if key == "" {
				continue
			}
			if !idx.claim(idx.exact, key, t) {
				idx.stats.ExactCollisions++
			}
		}

		if root := normalize.RootKey(p.CompanyName); normalize.ValidRoot(root) {
			if !idx.claim(idx.root, root, t) {
				idx.stats.RootCollisions++
			}
		}
	}

	idx.stats.ExactKeys = len(idx.exact)
	idx.stats.RootKeys = len(idx.root)
	idx.stats.AmbiguousKeys = len(idx.ambiguous)
	o.logger.Info("resolution index built",
		"pairs", idx.stats.Pairs,
		"exact_keys", idx.stats.ExactKeys,
		"root_keys", idx.stats.RootKeys,
		"ambiguous_keys", idx.stats.AmbiguousKeys,
	)
	return idx, nil
}

// claim inserts key if absent and reports whether it did. A rejected claim
// from a different company marks the key ambiguous.
func (idx *Index) claim(m map[string]target, key string, t target) bool {
	cur, ok := m[key]
	if !ok {
		m[key] = t
		return true
	}
	if cur.companyID != t.companyID {
		idx.ambiguous[key] = struct{}{}
	}
	return false
}

// ResolveExact returns the entity registered under a canonical name.
func (idx *Index) ResolveExact(key string) (int64, bool) {
	if key == "" {
		return 0, false
	}
	t, ok := idx.exact[key]
	return t.entityID, ok
}

// ResolveRoot returns the entity registered under a root key. Roots that
// fail normalize.ValidRoot never resolve.
func (idx *Index) ResolveRoot(root string) (int64, bool) {
	if !normalize.ValidRoot(root) {
		return 0, false
	}
	t, ok := idx.root[root]
	return t.entityID, ok
}

// Ambiguous reports whether more than one company competed for key, in
// either the exact or the root table.
func (idx *Index) Ambiguous(key string) bool {
	_, ok := idx.ambiguous[key]
	return ok
}

// AmbiguousKeys returns every ambiguous key in sorted order.
func (idx *Index) AmbiguousKeys() []string {
	keys := make([]string, 0, len(idx.ambiguous))
	for k := range idx.ambiguous {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stats returns build statistics.
func (idx *Index) Stats() Stats {
	return idx.stats
}
