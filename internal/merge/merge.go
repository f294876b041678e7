// Package merge consolidates duplicate companies by tombstoning the
// superseded one and re-parenting its entities.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ajitpratap0/atlas-linker/internal/metrics"
	"github.com/ajitpratap0/atlas-linker/internal/models"
)

// Precondition errors. None of them leaves any change behind.
var (
	ErrSameCompany        = errors.New("superseded and surviving company are the same")
	ErrSurvivorTombstoned = errors.New("surviving company is tombstoned")
	ErrAlreadyTombstoned  = errors.New("company is already tombstoned")
)

// Store is the part of store.Store the merger needs.
type Store interface {
	GetCompany(ctx context.Context, id int64) (*models.Company, error)
	ListEntitiesByCompany(ctx context.Context, companyID int64) ([]models.Entity, error)
	MergeCompany(ctx context.Context, supersededID, survivingID int64, tombstoneName string) (int64, error)
}

// Result describes one tombstone operation.
type Result struct {
	SupersededID   int64   `json:"superseded_id"`
	SurvivingID    int64   `json:"surviving_id"`
	PreviousName   string  `json:"previous_name"`
	TombstonedName string  `json:"tombstoned_name"`
	EntitiesMoved  int64   `json:"entities_moved"`
	EntityIDs      []int64 `json:"entity_ids,omitempty"`
	DryRun         bool    `json:"dry_run"`
}

// Option configures a Merger.
type Option func(*Merger)

// WithDryRun validates and reports without writing.
func WithDryRun(dryRun bool) Option {
	return func(m *Merger) { m.dryRun = dryRun }
}

// Merger tombstones companies.
type Merger struct {
	store  Store
	logger *slog.Logger
	dryRun bool
}

// New creates a Merger.
func New(st Store, logger *slog.Logger, opts ...Option) *Merger {
	m := &Merger{store: st, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Tombstone merges supersededID into survivingID: every entity of the
// superseded company moves to the survivor, and the superseded company is
// renamed with the tombstone prefix and marked merged. Edges are untouched.
func (m *Merger) Tombstone(ctx context.Context, supersededID, survivingID int64) (*Result, error) {
	superseded, err := m.check(ctx, supersededID, survivingID)
	if err != nil {
		return nil, err
	}
	return m.apply(ctx, superseded, survivingID)
}

// TombstoneAll merges every id in supersededIDs into survivingID. All
// fragments are validated before the first one is merged.
func (m *Merger) TombstoneAll(ctx context.Context, survivingID int64, supersededIDs ...int64) ([]*Result, error) {
	seen := make(map[int64]bool, len(supersededIDs))
	fragments := make([]*models.Company, 0, len(supersededIDs))
	for _, id := range supersededIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		c, err := m.check(ctx, id, survivingID)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, c)
	}

	results := make([]*Result, 0, len(fragments))
	for _, c := range fragments {
		res, err := m.apply(ctx, c, survivingID)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (m *Merger) check(ctx context.Context, supersededID, survivingID int64) (*models.Company, error) {
	if supersededID == survivingID {
		return nil, fmt.Errorf("%w: %d", ErrSameCompany, supersededID)
	}
	superseded, err := m.store.GetCompany(ctx, supersededID)
	if err != nil {
		return nil, fmt.Errorf("loading superseded company: %w", err)
	}
	surviving, err := m.store.GetCompany(ctx, survivingID)
	if err != nil {
		return nil, fmt.Errorf("loading surviving company: %w", err)
	}
	if surviving.Tombstoned() {
		return nil, fmt.Errorf("%w: %d %q", ErrSurvivorTombstoned, surviving.ID, surviving.Name)
	}
	if superseded.Tombstoned() {
		return nil, fmt.Errorf("%w: %d %q", ErrAlreadyTombstoned, superseded.ID, superseded.Name)
	}
	return superseded, nil
}

func (m *Merger) apply(ctx context.Context, superseded *models.Company, survivingID int64) (*Result, error) {
	res := &Result{
		SupersededID:   superseded.ID,
		SurvivingID:    survivingID,
		PreviousName:   superseded.Name,
		TombstonedName: models.TombstoneName(superseded.Name),
		DryRun:         m.dryRun,
	}

	if m.dryRun {
		entities, err := m.store.ListEntitiesByCompany(ctx, superseded.ID)
		if err != nil {
			return nil, fmt.Errorf("listing entities of company %d: %w", superseded.ID, err)
		}
		for _, e := range entities {
			res.EntityIDs = append(res.EntityIDs, e.ID)
		}
		res.EntitiesMoved = int64(len(entities))
		m.logger.Info("would tombstone company", "company_id", superseded.ID, "into", survivingID, "entities", res.EntitiesMoved)
		return res, nil
	}

	moved, err := m.store.MergeCompany(ctx, superseded.ID, survivingID, res.TombstonedName)
	if err != nil {
		return nil, fmt.Errorf("merging company %d into %d: %w", superseded.ID, survivingID, err)
	}
	res.EntitiesMoved = moved
	metrics.Inc(metrics.CompaniesMerged)
	metrics.EntitiesMoved.Add(moved)
	m.logger.Info("tombstoned company", "company_id", superseded.ID, "name", res.TombstonedName, "into", survivingID, "entities_moved", moved)
	return res, nil
}
