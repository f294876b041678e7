package store

import (
	"context"
	"errors"

	"github.com/ajitpratap0/atlas-linker/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEdge is returned by InsertEdge when an active edge with the same
// (property, entity, relationship type) already exists.
var ErrDuplicateEdge = errors.New("duplicate relationship edge")

// ErrCompanyNotActive is returned by MergeCompany when either company was
// merged by someone else after it was read.
var ErrCompanyNotActive = errors.New("company is not active")

// Store is the persisted ownership graph as seen by the linking engine.
type Store interface {
	// ListActiveEntityPairs returns every entity joined with its company,
	// skipping tombstoned companies, ordered by entity ID ascending.
	ListActiveEntityPairs(ctx context.Context) ([]models.EntityPair, error)

	// ListUnresolvedParties returns distinct (property, party name) candidates
	// for role whose deal has a property, whose party has no entity, and whose
	// property has no active edge of relType. Ordered by property ID, then
	// party name.
	ListUnresolvedParties(ctx context.Context, role models.PartyRole, relType models.RelationshipType) ([]models.UnresolvedParty, error)

	// ListPropertyAnchors returns the active owner and operator edges of the
	// given properties whose entity belongs to an active company, ordered by
	// property ID, then edge ID.
	ListPropertyAnchors(ctx context.Context, propertyIDs []int64) ([]models.PropertyAnchor, error)

	// InsertEdge creates a relationship edge and returns its ID.
	// It returns ErrDuplicateEdge if an identical active edge exists.
	InsertEdge(ctx context.Context, edge models.RelationshipEdge) (int64, error)

	// GetCompany retrieves a company by ID, or ErrNotFound.
	GetCompany(ctx context.Context, id int64) (*models.Company, error)

	// ListEntitiesByCompany returns the entities owned by a company, ordered by ID.
	ListEntitiesByCompany(ctx context.Context, companyID int64) ([]models.Entity, error)

	// MergeCompany atomically re-points every entity of supersededID to
	// survivingID, renames supersededID to tombstoneName and marks it merged.
	// Both companies must still be active when the merge commits.
	// It returns the number of entities moved.
	MergeCompany(ctx context.Context, supersededID, survivingID int64, tombstoneName string) (int64, error)

	// ListEdgeDetails returns every edge of relType joined with its property,
	// entity and company, ordered by company name, facility name, edge ID.
	ListEdgeDetails(ctx context.Context, relType models.RelationshipType) ([]models.EdgeDetail, error)

	// DeleteEdges deletes the edges in ids whose type is relType and returns
	// the number removed. Edges of any other type are left alone.
	DeleteEdges(ctx context.Context, ids []int64, relType models.RelationshipType) (int64, error)

	// Coverage returns per-type property coverage over active companies.
	Coverage(ctx context.Context) (*models.CoverageStats, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}
