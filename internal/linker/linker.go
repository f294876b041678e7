// Package linker resolves free-text deal parties to graph entities and
// records the resulting property relationships.
package linker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ajitpratap0/atlas-linker/internal/metrics"
	"github.com/ajitpratap0/atlas-linker/internal/models"
	"github.com/ajitpratap0/atlas-linker/internal/resolve"
	"github.com/ajitpratap0/atlas-linker/internal/store"
	"github.com/ajitpratap0/atlas-linker/pkg/normalize"
)

// ErrUnknownRole is returned for a party role with no relationship mapping.
var ErrUnknownRole = errors.New("unknown party role")

// Defaults for Linker options.
const (
	DefaultDataSource    = "linked"
	DefaultSampleMatches = 10
	DefaultSampleMisses  = 15
)

// Strategy names the lookup that produced a match.
type Strategy string

const (
	StrategyExact    Strategy = "exact"
	StrategyRoot     Strategy = "root"
	StrategyAnchor   Strategy = "anchor"
	StrategyLocation Strategy = "location"
)

// anchoredRoles are the roles usually played by the owner or operator of the
// property itself, so their parties are tried against it first.
var anchoredRoles = map[models.PartyRole]bool{
	models.RoleBuyer:    true,
	models.RoleBorrower: true,
}

// Store is the part of store.Store the linker needs.
type Store interface {
	resolve.Source
	ListUnresolvedParties(ctx context.Context, role models.PartyRole, relType models.RelationshipType) ([]models.UnresolvedParty, error)
	ListPropertyAnchors(ctx context.Context, propertyIDs []int64) ([]models.PropertyAnchor, error)
	InsertEdge(ctx context.Context, edge models.RelationshipEdge) (int64, error)
}

// MatchSample records one resolved candidate.
type MatchSample struct {
	PropertyID int64    `json:"property_id"`
	PartyName  string   `json:"party_name"`
	EntityID   int64    `json:"entity_id"`
	Strategy   Strategy `json:"strategy"`
	Key        string   `json:"key"`
}

// MissSample records one candidate that did not resolve.
type MissSample struct {
	PropertyID int64  `json:"property_id"`
	PartyName  string `json:"party_name"`
	Key        string `json:"key"`
	Root       string `json:"root,omitempty"`
}

// LinkReport summarizes one linking pass.
type LinkReport struct {
	Role             models.PartyRole        `json:"role"`
	RelationshipType models.RelationshipType `json:"relationship_type"`
	RunID            string                  `json:"run_id"`
	DryRun           bool                    `json:"dry_run"`
	Candidates       int                     `json:"candidates"`
	Matched          int                     `json:"matched"`
	MatchedExact     int                     `json:"matched_exact"`
	MatchedRoot      int                     `json:"matched_root"`
	MatchedAnchor    int                     `json:"matched_anchor"`
	MatchedLocation  int                     `json:"matched_location"`
	AlreadyLinked    int                     `json:"already_linked"`
	Skipped          int                     `json:"skipped"`
	Unmatched        int                     `json:"unmatched"`
	SampleMatches    []MatchSample           `json:"sample_matches"`
	SampleMisses     []MissSample            `json:"sample_misses"`
}

// Option configures a Linker.
type Option func(*Linker)

// WithDataSource sets the provenance tag written on new edges.
func WithDataSource(source string) Option {
	return func(l *Linker) { l.dataSource = source }
}

// WithSampleSizes bounds the match and miss samples kept in a report.
func WithSampleSizes(matches, misses int) Option {
	return func(l *Linker) {
		l.sampleMatches = matches
		l.sampleMisses = misses
	}
}

// WithDryRun makes the linker resolve and report without inserting edges.
func WithDryRun(dryRun bool) Option {
	return func(l *Linker) { l.dryRun = dryRun }
}

// WithOwnerAnchor makes buyer and borrower parties resolve against the owner
// and operator entities of their own property before the global index.
func WithOwnerAnchor(enabled bool) Option {
	return func(l *Linker) { l.ownerAnchor = enabled }
}

// Linker turns unresolved deal parties into relationship edges.
type Linker struct {
	store         Store
	logger        *slog.Logger
	dataSource    string
	sampleMatches int
	sampleMisses  int
	dryRun        bool
	ownerAnchor   bool
}

// New creates a Linker.
func New(st Store, logger *slog.Logger, opts ...Option) *Linker {
	l := &Linker{
		store:         st,
		logger:        logger,
		dataSource:    DefaultDataSource,
		sampleMatches: DefaultSampleMatches,
		sampleMisses:  DefaultSampleMisses,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LinkUnresolved runs one pass for role. It builds a fresh resolution index,
// resolves each candidate by exact key then root key, and inserts at most one
// edge per property. With WithOwnerAnchor, buyer and borrower candidates are
// first matched against the entities already attached to their property.
// Re-running on an unchanged store matches nothing.
func (l *Linker) LinkUnresolved(ctx context.Context, role string) (*LinkReport, error) {
	partyRole := models.PartyRole(role)
	relType, ok := models.RelationshipForRole(partyRole)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	idx, err := resolve.Build(ctx, l.store, resolve.WithLogger(l.logger))
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}

	candidates, err := l.store.ListUnresolvedParties(ctx, partyRole, relType)
	if err != nil {
		return nil, fmt.Errorf("listing candidates: %w", err)
	}

	var anchors map[int64][]models.PropertyAnchor
	if l.ownerAnchor && anchoredRoles[partyRole] && len(candidates) > 0 {
		anchors, err = l.loadAnchors(ctx, candidates)
		if err != nil {
			return nil, err
		}
	}

	report := &LinkReport{
		Role:             partyRole,
		RelationshipType: relType,
		RunID:            uuid.NewString(),
		DryRun:           l.dryRun,
		Candidates:       len(candidates),
		SampleMatches:    []MatchSample{},
		SampleMisses:     []MissSample{},
	}
	metrics.LinkCandidates.Add(int64(len(candidates)))
	l.logger.Info("linking parties", "role", role, "relationship_type", relType, "candidates", len(candidates), "anchored_properties", len(anchors), "run_id", report.RunID, "dry_run", l.dryRun)

	linked := make(map[int64]bool)
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("linking %s parties: %w", role, err)
		}
		if linked[c.PropertyID] {
			report.Skipped++
			continue
		}

		key := normalize.Canonicalize(c.PartyName)
		entityID, strategy, matchKey, hit := lookupAnchored(anchors[c.PropertyID], key, c.PartyName)
		if !hit {
			entityID, strategy, matchKey, hit = lookup(idx, key, c.PartyName)
		}
		if !hit {
			report.Unmatched++
			metrics.Inc(metrics.LinkUnmatched)
			if len(report.SampleMisses) < l.sampleMisses {
				report.SampleMisses = append(report.SampleMisses, MissSample{
					PropertyID: c.PropertyID,
					PartyName:  c.PartyName,
					Key:        key,
					Root:       normalize.RootKey(c.PartyName),
				})
			}
			continue
		}

		if !l.dryRun {
			_, err := l.store.InsertEdge(ctx, models.RelationshipEdge{
				PropertyID:       c.PropertyID,
				EntityID:         entityID,
				RelationshipType: relType,
				DataSource:       l.dataSource,
				Notes:            fmt.Sprintf("run %s: %s match on %q (deal %d)", report.RunID, strategy, matchKey, c.DealID),
			})
			if errors.Is(err, store.ErrDuplicateEdge) {
				linked[c.PropertyID] = true
				report.AlreadyLinked++
				metrics.Inc(metrics.LinkAlreadyLinked)
				l.logger.Debug("edge already present", "property_id", c.PropertyID, "entity_id", entityID)
				continue
			}
			if err != nil {
				return report, fmt.Errorf("linking property %d: %w", c.PropertyID, err)
			}
		}

		linked[c.PropertyID] = true
		report.Matched++
		switch strategy {
		case StrategyExact:
			report.MatchedExact++
			metrics.Inc(metrics.LinkMatchedExact)
		case StrategyRoot:
			report.MatchedRoot++
			metrics.Inc(metrics.LinkMatchedRoot)
		case StrategyAnchor:
			report.MatchedAnchor++
			metrics.Inc(metrics.LinkMatchedAnchor)
		case StrategyLocation:
			report.MatchedLocation++
			metrics.Inc(metrics.LinkMatchedLocation)
		}
		if len(report.SampleMatches) < l.sampleMatches {
			report.SampleMatches = append(report.SampleMatches, MatchSample{
				PropertyID: c.PropertyID,
				PartyName:  c.PartyName,
				EntityID:   entityID,
				Strategy:   strategy,
				Key:        matchKey,
			})
		}
	}

	l.logger.Info("linking complete",
		"role", role,
		"matched", report.Matched,
		"exact", report.MatchedExact,
		"root", report.MatchedRoot,
		"anchor", report.MatchedAnchor,
		"location", report.MatchedLocation,
		"already_linked", report.AlreadyLinked,
		"skipped", report.Skipped,
		"unmatched", report.Unmatched,
	)
	return report, nil
}

// LinkRoles runs LinkUnresolved for each role in order and stops at the first
// error. Reports of the passes that completed are returned with the error.
func (l *Linker) LinkRoles(ctx context.Context, roles ...models.PartyRole) ([]*LinkReport, error) {
	if len(roles) == 0 {
		roles = models.LinkableRoles
	}
	reports := make([]*LinkReport, 0, len(roles))
	for _, role := range roles {
		report, err := l.LinkUnresolved(ctx, string(role))
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func lookup(idx *resolve.Index, key, raw string) (int64, Strategy, string, bool) {
	if id, ok := idx.ResolveExact(key); ok {
		return id, StrategyExact, key, true
	}
	root := normalize.RootKey(raw)
	if id, ok := idx.ResolveRoot(root); ok {
		return id, StrategyRoot, root, true
	}
	return 0, "", "", false
}

// loadAnchors returns the owner and operator entities of every candidate
// property, keyed by property ID.
func (l *Linker) loadAnchors(ctx context.Context, candidates []models.UnresolvedParty) (map[int64][]models.PropertyAnchor, error) {
	ids := make([]int64, 0, len(candidates))
	seen := make(map[int64]bool, len(candidates))
	for _, c := range candidates {
		if !seen[c.PropertyID] {
			seen[c.PropertyID] = true
			ids = append(ids, c.PropertyID)
		}
	}
	rows, err := l.store.ListPropertyAnchors(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading property anchors: %w", err)
	}
	anchors := make(map[int64][]models.PropertyAnchor, len(ids))
	for _, a := range rows {
		anchors[a.PropertyID] = append(anchors[a.PropertyID], a)
	}
	return anchors, nil
}

// lookupAnchored matches a party against the entities attached to its
// property: by canonical entity or company name with owners before operators,
// then by location key against owner entity names.
func lookupAnchored(anchors []models.PropertyAnchor, key, raw string) (int64, Strategy, string, bool) {
	if len(anchors) == 0 {
		return 0, "", "", false
	}
	if key != "" {
		for _, rel := range models.AnchorRelationships {
			for _, a := range anchors {
				if a.RelationshipType != rel {
					continue
				}
				if normalize.Canonicalize(a.EntityName) == key || normalize.Canonicalize(a.CompanyName) == key {
					return a.EntityID, StrategyAnchor, key, true
				}
			}
		}
	}
	if loc := normalize.LocationKey(raw); loc != "" {
		for _, a := range anchors {
			if a.RelationshipType == models.RelPropertyOwner && normalize.LocationKey(a.EntityName) == loc {
				return a.EntityID, StrategyLocation, loc, true
			}
		}
	}
	return 0, "", "", false
}
