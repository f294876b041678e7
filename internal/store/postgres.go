package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ajitpratap0/atlas-linker/internal/models"
)

const (
	tableCompanies     = "companies"
	tableEntities      = "entities"
	tableProperties    = "property_master"
	tableDeals         = "deals"
	tableDealParties   = "deals_parties"
	tableRelationships = "property_entity_relationships"
)

// uniqueViolation is the SQLSTATE PostgreSQL reports for a unique index conflict.
const uniqueViolation = pq.ErrorCode("23505")

// PostgresConfig holds connection pool settings for PostgresStore.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// PostgresStore implements Store on PostgreSQL using sqlx and go-sqlbuilder.
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresStore opens and verifies a PostgreSQL connection pool.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logger.Info("connected to PostgreSQL", "max_open_conns", cfg.MaxOpenConns)
	return NewPostgresStoreFromDB(db, logger), nil
}

// NewPostgresStoreFromDB wraps an existing sqlx handle.
func NewPostgresStoreFromDB(db *sqlx.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// DB exposes the underlying handle, used by the migration runner.
func (p *PostgresStore) DB() *sql.DB {
	return p.db.DB
}

func (p *PostgresStore) ListActiveEntityPairs(ctx context.Context) ([]models.EntityPair, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"e.id AS entity_id",
		"e.entity_name",
		"c.id AS company_id",
		"c.company_name",
		"c.status AS company_status",
	)
	sb.From(tableEntities + " e")
	sb.Join(tableCompanies+" c", "c.id = e.company_id")
	sb.Where(activeCompany(sb)...)
	sb.OrderBy("e.id")

	query, args := sb.Build()
	var pairs []models.EntityPair
	if err := p.db.SelectContext(ctx, &pairs, query, args...); err != nil {
		return nil, fmt.Errorf("listing entity pairs: %w", err)
	}
	return pairs, nil
}

func (p *PostgresStore) ListUnresolvedParties(ctx context.Context, role models.PartyRole, relType models.RelationshipType) ([]models.UnresolvedParty, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"DISTINCT ON (d.property_master_id, dp.party_name) d.property_master_id",
		"d.id AS deal_id",
		"dp.party_name",
	)
	sb.From(tableDealParties + " dp")
	sb.Join(tableDeals+" d", "d.id = dp.deal_id")
	sb.Where(
		sb.Equal("dp.party_role", string(role)),
		sb.IsNotNull("d.property_master_id"),
		sb.IsNull("dp.entity_id"),
		fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s per WHERE per.property_master_id = d.property_master_id AND per.relationship_type = %s AND per.end_date IS NULL)",
			tableRelationships, sb.Var(string(relType))),
	)
	sb.OrderBy("d.property_master_id", "dp.party_name", "d.id")

	query, args := sb.Build()
	var parties []models.UnresolvedParty
	if err := p.db.SelectContext(ctx, &parties, query, args...); err != nil {
		return nil, fmt.Errorf("listing unresolved %s parties: %w", role, err)
	}
	return parties, nil
}

func (p *PostgresStore) ListPropertyAnchors(ctx context.Context, propertyIDs []int64) ([]models.PropertyAnchor, error) {
	if len(propertyIDs) == 0 {
		return nil, nil
	}
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"per.id AS edge_id",
		"per.property_master_id",
		"per.entity_id",
		"per.relationship_type",
		"e.entity_name",
		"c.company_name",
	)
	sb.From(tableRelationships + " per")
	sb.Join(tableEntities+" e", "e.id = per.entity_id")
	sb.Join(tableCompanies+" c", "c.id = e.company_id")
	sb.Where(append([]string{
		fmt.Sprintf("per.property_master_id = ANY(%s)", sb.Var(pq.Array(propertyIDs))),
		sb.In("per.relationship_type", string(models.RelPropertyOwner), string(models.RelFacilityOperator)),
		sb.IsNull("per.end_date"),
	}, activeCompany(sb)...)...)
	sb.OrderBy("per.property_master_id", "per.id")

	query, args := sb.Build()
	var anchors []models.PropertyAnchor
	if err := p.db.SelectContext(ctx, &anchors, query, args...); err != nil {
		return nil, fmt.Errorf("listing anchors of %d properties: %w", len(propertyIDs), err)
	}
	return anchors, nil
}

func (p *PostgresStore) InsertEdge(ctx context.Context, edge models.RelationshipEdge) (int64, error) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(tableRelationships)
	ib.Cols("property_master_id", "entity_id", "relationship_type", "effective_date", "end_date", "data_source", "notes")
	ib.Values(edge.PropertyID, edge.EntityID, string(edge.RelationshipType), edge.EffectiveDate, edge.EndDate, edge.DataSource, edge.Notes)
	ib.Returning("id")

	query, args := ib.Build()
	var id int64
	if err := p.db.GetContext(ctx, &id, query, args...); err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: property %d entity %d %s", ErrDuplicateEdge, edge.PropertyID, edge.EntityID, edge.RelationshipType)
		}
		return 0, fmt.Errorf("inserting %s edge for property %d: %w", edge.RelationshipType, edge.PropertyID, err)
	}
	return id, nil
}

func (p *PostgresStore) GetCompany(ctx context.Context, id int64) (*models.Company, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "company_name", "company_type", "status", "superseded_by")
	sb.From(tableCompanies)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var c models.Company
	if err := p.db.GetContext(ctx, &c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: company %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("getting company %d: %w", id, err)
	}
	return &c, nil
}

func (p *PostgresStore) ListEntitiesByCompany(ctx context.Context, companyID int64) ([]models.Entity, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "entity_name", "company_id")
	sb.From(tableEntities)
	sb.Where(sb.Equal("company_id", companyID))
	sb.OrderBy("id")

	query, args := sb.Build()
	var entities []models.Entity
	if err := p.db.SelectContext(ctx, &entities, query, args...); err != nil {
		return nil, fmt.Errorf("listing entities of company %d: %w", companyID, err)
	}
	return entities, nil
}

type companyStatusRow struct {
	ID     int64  `db:"id"`
	Status string `db:"status"`
}

// MergeCompany runs the tombstone and the entity re-point in one transaction.
// Both company rows are locked in ID order first, so a concurrent merge of
// either company waits and then fails the status check instead of leaving
// entities under a tombstoned survivor.
func (p *PostgresStore) MergeCompany(ctx context.Context, supersededID, survivingID int64, tombstoneName string) (int64, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning merge transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	lb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	lb.Select("id", "status").From(tableCompanies)
	lb.Where(fmt.Sprintf("id = ANY(%s)", lb.Var(pq.Array([]int64{supersededID, survivingID}))))
	lb.OrderBy("id").ForUpdate()
	query, args := lb.Build()
	var locked []companyStatusRow
	if err := tx.SelectContext(ctx, &locked, query, args...); err != nil {
		return 0, fmt.Errorf("locking companies %d and %d: %w", supersededID, survivingID, err)
	}
	status := make(map[int64]string, len(locked))
	for _, r := range locked {
		status[r.ID] = r.Status
	}
	for _, id := range []int64{supersededID, survivingID} {
		st, ok := status[id]
		if !ok {
			return 0, fmt.Errorf("%w: company %d", ErrNotFound, id)
		}
		if st != string(models.CompanyStatusActive) {
			return 0, fmt.Errorf("%w: company %d", ErrCompanyNotActive, id)
		}
	}

	cb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	cb.Update(tableCompanies)
	cb.Set(
		cb.Assign("company_name", tombstoneName),
		cb.Assign("status", string(models.CompanyStatusMerged)),
		cb.Assign("superseded_by", survivingID),
		"updated_at = now()",
	)
	cb.Where(
		cb.Equal("id", supersededID),
		cb.Equal("status", string(models.CompanyStatusActive)),
	)
	query, args = cb.Build()
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("tombstoning company %d: %w", supersededID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, fmt.Errorf("%w: company %d", ErrCompanyNotActive, supersededID)
	}

	eb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	eb.Update(tableEntities)
	eb.Set(eb.Assign("company_id", survivingID))
	eb.Where(eb.Equal("company_id", supersededID))
	query, args = eb.Build()
	res, err = tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("re-pointing entities of company %d: %w", supersededID, err)
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting re-pointed entities: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing merge of company %d: %w", supersededID, err)
	}
	return moved, nil
}

func (p *PostgresStore) ListEdgeDetails(ctx context.Context, relType models.RelationshipType) ([]models.EdgeDetail, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"per.id",
		"per.property_master_id",
		"per.entity_id",
		"per.relationship_type",
		"per.effective_date",
		"per.end_date",
		"per.data_source",
		"per.notes",
		"pm.facility_name",
		"COALESCE(pm.ccn, '') AS ccn",
		"e.entity_name",
		"c.id AS company_id",
		"c.company_name",
		"c.company_type",
	)
	sb.From(tableRelationships + " per")
	sb.Join(tableEntities+" e", "e.id = per.entity_id")
	sb.Join(tableCompanies+" c", "c.id = e.company_id")
	sb.Join(tableProperties+" pm", "pm.id = per.property_master_id")
	sb.Where(sb.Equal("per.relationship_type", string(relType)))
	sb.OrderBy("c.company_name", "pm.facility_name", "per.id")

	query, args := sb.Build()
	var details []models.EdgeDetail
	if err := p.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, fmt.Errorf("listing %s edges: %w", relType, err)
	}
	return details, nil
}

func (p *PostgresStore) DeleteEdges(ctx context.Context, ids []int64, relType models.RelationshipType) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	del.DeleteFrom(tableRelationships)
	del.Where(
		fmt.Sprintf("id = ANY(%s)", del.Var(pq.Array(ids))),
		del.Equal("relationship_type", string(relType)),
	)

	query, args := del.Build()
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting %d %s edges: %w", len(ids), relType, err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted edges: %w", err)
	}
	return deleted, nil
}

type coverageRow struct {
	RelationshipType string `db:"relationship_type"`
	Properties       int64  `db:"properties"`
}

func (p *PostgresStore) Coverage(ctx context.Context) (*models.CoverageStats, error) {
	stats := &models.CoverageStats{ByType: make(map[string]int64)}

	tb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	tb.Select("COUNT(*)").From(tableProperties)
	query, args := tb.Build()
	if err := p.db.GetContext(ctx, &stats.TotalProperties, query, args...); err != nil {
		return nil, fmt.Errorf("counting properties: %w", err)
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("per.relationship_type", "COUNT(DISTINCT per.property_master_id) AS properties")
	sb.From(tableRelationships + " per")
	sb.Join(tableEntities+" e", "e.id = per.entity_id")
	sb.Join(tableCompanies+" c", "c.id = e.company_id")
	sb.Where(append([]string{sb.IsNull("per.end_date")}, activeCompany(sb)...)...)
	sb.GroupBy("per.relationship_type")
	sb.OrderBy("per.relationship_type")

	query, args = sb.Build()
	var rows []coverageRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("computing coverage: %w", err)
	}
	for _, r := range rows {
		stats.ByType[r.RelationshipType] = r.Properties
	}
	return stats, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging PostgreSQL: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

// activeCompany returns the predicates that exclude tombstoned companies
// aliased as c. Both the status flag and the legacy name prefix are checked.
func activeCompany(sb *sqlbuilder.SelectBuilder) []string {
	return []string{
		sb.Equal("c.status", string(models.CompanyStatusActive)),
		sb.NotLike("c.company_name", models.TombstonePrefix+"%"),
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
