package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ajitpratap0/atlas-linker/internal/models"
)

// MockStore is an in-memory implementation of Store for testing.
type MockStore struct {
	mu         sync.RWMutex
	nextID     int64
	companies  map[int64]*models.Company
	entities   map[int64]*models.Entity
	properties map[int64]*models.Property
	deals      map[int64]*models.Deal
	parties    map[int64]*models.DealParty
	edges      map[int64]*models.RelationshipEdge
}

// NewMockStore creates a new mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		companies:  make(map[int64]*models.Company),
		entities:   make(map[int64]*models.Entity),
		properties: make(map[int64]*models.Property),
		deals:      make(map[int64]*models.Deal),
		parties:    make(map[int64]*models.DealParty),
		edges:      make(map[int64]*models.RelationshipEdge),
	}
}

// assignID returns id if set, otherwise the next free ID. IDs are shared
// across tables so tests can tell rows apart at a glance.
func (m *MockStore) assignID(id int64) int64 {
	if id > m.nextID {
		m.nextID = id
	}
	if id != 0 {
		return id
	}
	m.nextID++
	return m.nextID
}

// AddCompany stores a company and returns its ID. Status defaults to active.
func (m *MockStore) AddCompany(c models.Company) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.assignID(c.ID)
	if c.Status == "" {
		c.Status = models.CompanyStatusActive
	}
	if c.Type == "" {
		c.Type = models.CompanyTypeOther
	}
	m.companies[c.ID] = &c
	return c.ID
}

// AddEntity stores an entity and returns its ID.
func (m *MockStore) AddEntity(e models.Entity) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.assignID(e.ID)
	m.entities[e.ID] = &e
	return e.ID
}

// AddProperty stores a property and returns its ID.
func (m *MockStore) AddProperty(p models.Property) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.assignID(p.ID)
	m.properties[p.ID] = &p
	return p.ID
}

// AddDeal stores a deal and returns its ID.
func (m *MockStore) AddDeal(d models.Deal) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = m.assignID(d.ID)
	m.deals[d.ID] = &d
	return d.ID
}

// AddDealParty stores a deal party and returns its ID.
func (m *MockStore) AddDealParty(p models.DealParty) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.assignID(p.ID)
	m.parties[p.ID] = &p
	return p.ID
}

// Edges returns a copy of every stored edge, ordered by ID.
func (m *MockStore) Edges() []models.RelationshipEdge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.RelationshipEdge, 0, len(m.edges))
	for _, e := range m.edges {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DealParties returns a copy of every stored deal party, ordered by ID.
func (m *MockStore) DealParties() []models.DealParty {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.DealParty, 0, len(m.parties))
	for _, p := range m.parties {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetEntity returns a copy of an entity, or ErrNotFound.
func (m *MockStore) GetEntity(id int64) (*models.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: entity %d", ErrNotFound, id)
	}
	cp := *e
	return &cp, nil
}

// ListActiveEntityPairs returns entity/company pairs of active companies.
func (m *MockStore) ListActiveEntityPairs(_ context.Context) ([]models.EntityPair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pairs []models.EntityPair
	for _, e := range m.entities {
		c, ok := m.companies[e.CompanyID]
		if !ok || c.Tombstoned() {
			continue
		}
		pairs = append(pairs, models.EntityPair{
			EntityID:      e.ID,
			EntityName:    e.Name,
			CompanyID:     c.ID,
			CompanyName:   c.Name,
			CompanyStatus: c.Status,
		})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].EntityID < pairs[j].EntityID })
	return pairs, nil
}

// ListUnresolvedParties returns linking candidates for role.
func (m *MockStore) ListUnresolvedParties(_ context.Context, role models.PartyRole, relType models.RelationshipType) ([]models.UnresolvedParty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	covered := make(map[int64]bool)
	for _, e := range m.edges {
		if e.RelationshipType == relType && e.Active() {
			covered[e.PropertyID] = true
		}
	}

	type key struct {
		property int64
		name     string
	}
	best := make(map[key]models.UnresolvedParty)
	for _, p := range m.parties {
		if p.Role != role || !p.Unresolved() {
			continue
		}
		d, ok := m.deals[p.DealID]
		if !ok || d.PropertyID == nil || covered[*d.PropertyID] {
			continue
		}
		k := key{property: *d.PropertyID, name: p.PartyName}
		if cur, seen := best[k]; seen && cur.DealID <= d.ID {
			continue
		}
		best[k] = models.UnresolvedParty{PropertyID: *d.PropertyID, DealID: d.ID, PartyName: p.PartyName}
	}

	out := make([]models.UnresolvedParty, 0, len(best))
	for _, up := range best {
		out = append(out, up)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PropertyID != out[j].PropertyID {
			return out[i].PropertyID < out[j].PropertyID
		}
		return out[i].PartyName < out[j].PartyName
	})
	return out, nil
}

// ListPropertyAnchors returns active owner and operator edges of propertyIDs.
func (m *MockStore) ListPropertyAnchors(_ context.Context, propertyIDs []int64) ([]models.PropertyAnchor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[int64]bool, len(propertyIDs))
	for _, id := range propertyIDs {
		wanted[id] = true
	}
	var anchors []models.PropertyAnchor
	for _, edge := range m.edges {
		if !wanted[edge.PropertyID] || !edge.Active() {
			continue
		}
		if edge.RelationshipType != models.RelPropertyOwner && edge.RelationshipType != models.RelFacilityOperator {
			continue
		}
		e, ok := m.entities[edge.EntityID]
		if !ok {
			continue
		}
		c, ok := m.companies[e.CompanyID]
		if !ok || c.Tombstoned() {
			continue
		}
		anchors = append(anchors, models.PropertyAnchor{
			EdgeID:           edge.ID,
			PropertyID:       edge.PropertyID,
			EntityID:         e.ID,
			RelationshipType: edge.RelationshipType,
			EntityName:       e.Name,
			CompanyName:      c.Name,
		})
	}
	sort.Slice(anchors, func(i, j int) bool {
		if anchors[i].PropertyID != anchors[j].PropertyID {
			return anchors[i].PropertyID < anchors[j].PropertyID
		}
		return anchors[i].EdgeID < anchors[j].EdgeID
	})
	return anchors, nil
}

// InsertEdge stores an edge, enforcing the one-active-edge-per-triple rule.
func (m *MockStore) InsertEdge(_ context.Context, edge models.RelationshipEdge) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if edge.Active() {
		for _, e := range m.edges {
			if e.Active() && e.PropertyID == edge.PropertyID && e.EntityID == edge.EntityID && e.RelationshipType == edge.RelationshipType {
				return 0, fmt.Errorf("%w: property %d entity %d %s", ErrDuplicateEdge, edge.PropertyID, edge.EntityID, edge.RelationshipType)
			}
		}
	}
	edge.ID = m.assignID(0)
	m.edges[edge.ID] = &edge
	return edge.ID, nil
}

// GetCompany retrieves a company by ID.
func (m *MockStore) GetCompany(_ context.Context, id int64) (*models.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.companies[id]
	if !ok {
		return nil, fmt.Errorf("%w: company %d", ErrNotFound, id)
	}
	cp := *c
	if c.SupersededBy != nil {
		v := *c.SupersededBy
		cp.SupersededBy = &v
	}
	return &cp, nil
}

// ListEntitiesByCompany returns the entities owned by companyID.
func (m *MockStore) ListEntitiesByCompany(_ context.Context, companyID int64) ([]models.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Entity
	for _, e := range m.entities {
		if e.CompanyID == companyID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MergeCompany re-points entities and tombstones supersededID in one step.
func (m *MockStore) MergeCompany(_ context.Context, supersededID, survivingID int64, tombstoneName string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	superseded, ok := m.companies[supersededID]
	if !ok {
		return 0, fmt.Errorf("%w: company %d", ErrNotFound, supersededID)
	}
	surviving, ok := m.companies[survivingID]
	if !ok {
		return 0, fmt.Errorf("%w: company %d", ErrNotFound, survivingID)
	}
	if superseded.Status != models.CompanyStatusActive {
		return 0, fmt.Errorf("%w: company %d", ErrCompanyNotActive, supersededID)
	}
	if surviving.Status != models.CompanyStatusActive {
		return 0, fmt.Errorf("%w: company %d", ErrCompanyNotActive, survivingID)
	}

	var moved int64
	for _, e := range m.entities {
		if e.CompanyID == supersededID {
			e.CompanyID = survivingID
			moved++
		}
	}
	superseded.Name = tombstoneName
	superseded.Status = models.CompanyStatusMerged
	survivor := survivingID
	superseded.SupersededBy = &survivor
	return moved, nil
}

// ListEdgeDetails returns edges of relType joined with their context rows.
func (m *MockStore) ListEdgeDetails(_ context.Context, relType models.RelationshipType) ([]models.EdgeDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.EdgeDetail
	for _, edge := range m.edges {
		if edge.RelationshipType != relType {
			continue
		}
		ent, ok := m.entities[edge.EntityID]
		if !ok {
			continue
		}
		comp, ok := m.companies[ent.CompanyID]
		if !ok {
			continue
		}
		prop, ok := m.properties[edge.PropertyID]
		if !ok {
			continue
		}
		out = append(out, models.EdgeDetail{
			RelationshipEdge: *edge,
			FacilityName:     prop.FacilityName,
			CCN:              prop.CCN,
			EntityName:       ent.Name,
			CompanyID:        comp.ID,
			CompanyName:      comp.Name,
			CompanyType:      string(comp.Type),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := strings.Compare(out[i].CompanyName, out[j].CompanyName); c != 0 {
			return c < 0
		}
		if c := strings.Compare(out[i].FacilityName, out[j].FacilityName); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteEdges removes the listed edges of relType.
func (m *MockStore) DeleteEdges(_ context.Context, ids []int64, relType models.RelationshipType) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for _, id := range ids {
		e, ok := m.edges[id]
		if !ok || e.RelationshipType != relType {
			continue
		}
		delete(m.edges, id)
		deleted++
	}
	return deleted, nil
}

// Coverage computes per-type property coverage over active companies.
func (m *MockStore) Coverage(_ context.Context) (*models.CoverageStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]map[int64]bool)
	for _, e := range m.edges {
		if !e.Active() {
			continue
		}
		ent, ok := m.entities[e.EntityID]
		if !ok {
			continue
		}
		comp, ok := m.companies[ent.CompanyID]
		if !ok || comp.Tombstoned() {
			continue
		}
		rt := string(e.RelationshipType)
		if seen[rt] == nil {
			seen[rt] = make(map[int64]bool)
		}
		seen[rt][e.PropertyID] = true
	}

	stats := &models.CoverageStats{
		TotalProperties: int64(len(m.properties)),
		ByType:          make(map[string]int64, len(seen)),
	}
	for rt, props := range seen {
		stats.ByType[rt] = int64(len(props))
	}
	return stats, nil
}

// Ping is a no-op for the mock store.
func (m *MockStore) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
