// Package audit finds relationship edges whose type was assigned by an
// automated process and is likely wrong, and rolls them back.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ajitpratap0/atlas-linker/internal/metrics"
	"github.com/ajitpratap0/atlas-linker/internal/models"
)

// auditedType is the only relationship type the audit inspects or deletes.
const auditedType = models.RelPropertyOwner

// Store is the part of store.Store the auditor needs.
type Store interface {
	ListEdgeDetails(ctx context.Context, relType models.RelationshipType) ([]models.EdgeDetail, error)
	DeleteEdges(ctx context.Context, ids []int64, relType models.RelationshipType) (int64, error)
}

// SuspectEdge is an owner edge flagged by a pattern.
type SuspectEdge struct {
	models.EdgeDetail
	PatternTag string `json:"pattern_tag"`
	Keyword    string `json:"keyword"`
}

// CompanyGroup collects the suspect edges of one owning company.
type CompanyGroup struct {
	CompanyID   int64         `json:"company_id"`
	CompanyName string        `json:"company_name"`
	Edges       []SuspectEdge `json:"edges"`
}

// SuspectReport is the result of an audit sweep.
type SuspectReport struct {
	Scanned   int            `json:"scanned"`
	Automated int            `json:"automated"`
	Suspect   int            `json:"suspect"`
	ByCompany []CompanyGroup `json:"by_company"`
}

// EdgeIDs returns the IDs of every suspect edge in report order.
func (r *SuspectReport) EdgeIDs() []int64 {
	ids := make([]int64, 0, r.Suspect)
	for _, g := range r.ByCompany {
		for _, e := range g.Edges {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// RollbackReport describes a rollback run.
type RollbackReport struct {
	DryRun    bool  `json:"dry_run"`
	Requested int   `json:"requested"`
	Eligible  int   `json:"eligible"`
	Deleted   int64 `json:"deleted"`
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithProvenance replaces the rules that identify automated edges.
func WithProvenance(rules ...ProvenanceRule) Option {
	return func(a *Auditor) { a.provenance = rules }
}

// Auditor sweeps owner edges for likely misassignments.
type Auditor struct {
	store      Store
	logger     *slog.Logger
	patterns   PatternSet
	provenance []ProvenanceRule
}

// New creates an Auditor matching company names against patterns.
func New(st Store, logger *slog.Logger, patterns PatternSet, opts ...Option) *Auditor {
	a := &Auditor{
		store:      st,
		logger:     logger,
		patterns:   patterns,
		provenance: DefaultProvenance(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FindSuspectEdges returns automated owner edges whose company name matches a
// pattern, grouped by company. It never writes.
func (a *Auditor) FindSuspectEdges(ctx context.Context) (*SuspectReport, error) {
	details, err := a.store.ListEdgeDetails(ctx, auditedType)
	if err != nil {
		return nil, fmt.Errorf("listing owner edges: %w", err)
	}

	report := &SuspectReport{Scanned: len(details), ByCompany: []CompanyGroup{}}
	groups := make(map[int64]int)
	for i := range details {
		d := details[i]
		if !a.automated(&d.RelationshipEdge) {
			continue
		}
		report.Automated++
		p, ok := a.patterns.Match(d.CompanyName)
		if !ok {
			continue
		}

		gi, seen := groups[d.CompanyID]
		if !seen {
			gi = len(report.ByCompany)
			groups[d.CompanyID] = gi
			report.ByCompany = append(report.ByCompany, CompanyGroup{CompanyID: d.CompanyID, CompanyName: d.CompanyName})
		}
		report.ByCompany[gi].Edges = append(report.ByCompany[gi].Edges, SuspectEdge{
			EdgeDetail: d,
			PatternTag: p.Tag,
			Keyword:    p.Keyword,
		})
		report.Suspect++
	}

	metrics.SuspectEdges.Add(int64(report.Suspect))
	a.logger.Info("audit complete", "scanned", report.Scanned, "automated", report.Automated, "suspect", report.Suspect, "companies", len(report.ByCompany))
	return report, nil
}

// Rollback deletes the owner edges in ids. In dry-run mode it only reports
// how many of them exist and would be deleted. Edges of any other type are
// never deleted.
func (a *Auditor) Rollback(ctx context.Context, ids []int64, dryRun bool) (*RollbackReport, error) {
	ids = dedupe(ids)
	report := &RollbackReport{DryRun: dryRun, Requested: len(ids)}
	if len(ids) == 0 {
		return report, nil
	}

	eligible, err := a.eligible(ctx, ids)
	if err != nil {
		return nil, err
	}
	report.Eligible = len(eligible)

	if dryRun {
		a.logger.Info("rollback dry run", "requested", report.Requested, "eligible", report.Eligible)
		return report, nil
	}

	deleted, err := a.store.DeleteEdges(ctx, eligible, auditedType)
	if err != nil {
		return nil, fmt.Errorf("deleting edges: %w", err)
	}
	report.Deleted = deleted
	metrics.EdgesRolledBack.Add(deleted)
	a.logger.Info("rollback applied", "requested", report.Requested, "deleted", deleted)
	return report, nil
}

// eligible returns the ids that name an existing owner edge.
func (a *Auditor) eligible(ctx context.Context, ids []int64) ([]int64, error) {
	details, err := a.store.ListEdgeDetails(ctx, auditedType)
	if err != nil {
		return nil, fmt.Errorf("listing owner edges: %w", err)
	}
	present := make(map[int64]bool, len(details))
	for i := range details {
		present[details[i].ID] = true
	}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if present[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

func (a *Auditor) automated(edge *models.RelationshipEdge) bool {
	for _, r := range a.provenance {
		if r.Matches(edge) {
			return true
		}
	}
	return false
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
