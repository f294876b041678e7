package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/atlas-linker/internal/models"
)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	st       *MockStore
	acme     int64
	acmeOld  int64
	entity   int64
	oldEnt   int64
	property int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := NewMockStore()
	f := fixture{st: st}
	f.acme = st.AddCompany(models.Company{Name: "Acme Health"})
	f.acmeOld = st.AddCompany(models.Company{Name: "Acme Health Care Inc"})
	f.entity = st.AddEntity(models.Entity{Name: "Acme Holdings LLC", CompanyID: f.acme})
	f.oldEnt = st.AddEntity(models.Entity{Name: "Acme Propco LP", CompanyID: f.acmeOld})
	f.property = st.AddProperty(models.Property{CCN: "105001", FacilityName: "Windsor Care Center"})
	return f
}

func TestMockStore_InsertEdgeRejectsActiveDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	edge := models.RelationshipEdge{PropertyID: f.property, EntityID: f.entity, RelationshipType: models.RelPropertyBuyer}

	_, err := f.st.InsertEdge(ctx, edge)
	require.NoError(t, err)
	_, err = f.st.InsertEdge(ctx, edge)
	assert.ErrorIs(t, err, ErrDuplicateEdge)

	ended := edge
	ended.EndDate = ptr(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err = f.st.InsertEdge(ctx, ended)
	assert.NoError(t, err, "ended edges do not collide with active ones")
	assert.Len(t, f.st.Edges(), 2)
}

func TestMockStore_ListUnresolvedParties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := f.st.AddProperty(models.Property{FacilityName: "Incline Village"})
	d1 := f.st.AddDeal(models.Deal{PropertyID: &f.property, DealType: "sale"})
	d2 := f.st.AddDeal(models.Deal{PropertyID: &f.property, DealType: "sale"})
	d3 := f.st.AddDeal(models.Deal{PropertyID: &other, DealType: "sale"})
	orphan := f.st.AddDeal(models.Deal{DealType: "sale"})

	f.st.AddDealParty(models.DealParty{DealID: d2, Role: models.RoleBuyer, PartyName: "ZETA LLC"})
	f.st.AddDealParty(models.DealParty{DealID: d1, Role: models.RoleBuyer, PartyName: "ZETA LLC"})
	f.st.AddDealParty(models.DealParty{DealID: d1, Role: models.RoleBuyer, PartyName: "ACME"})
	f.st.AddDealParty(models.DealParty{DealID: d1, Role: models.RoleSeller, PartyName: "SELLER CO"})
	f.st.AddDealParty(models.DealParty{DealID: d3, Role: models.RoleBuyer, PartyName: "RESOLVED", EntityID: &f.entity})
	f.st.AddDealParty(models.DealParty{DealID: orphan, Role: models.RoleBuyer, PartyName: "NO PROPERTY"})

	got, err := f.st.ListUnresolvedParties(ctx, models.RoleBuyer, models.RelPropertyBuyer)
	require.NoError(t, err)
	assert.Equal(t, []models.UnresolvedParty{
		{PropertyID: f.property, DealID: d1, PartyName: "ACME"},
		{PropertyID: f.property, DealID: d1, PartyName: "ZETA LLC"},
	}, got)

	_, err = f.st.InsertEdge(ctx, models.RelationshipEdge{PropertyID: f.property, EntityID: f.entity, RelationshipType: models.RelPropertyBuyer})
	require.NoError(t, err)
	got, err = f.st.ListUnresolvedParties(ctx, models.RoleBuyer, models.RelPropertyBuyer)
	require.NoError(t, err)
	assert.Empty(t, got, "a property holding an edge of the type is no longer a candidate")
}

func TestMockStore_ListPropertyAnchors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.st.AddProperty(models.Property{FacilityName: "Incline Village"})
	legacy := f.st.AddCompany(models.Company{Name: "Gone", Status: models.CompanyStatusMerged})
	legacyEnt := f.st.AddEntity(models.Entity{Name: "Gone Propco", CompanyID: legacy})

	insert := func(e models.RelationshipEdge) int64 {
		id, err := f.st.InsertEdge(ctx, e)
		require.NoError(t, err)
		return id
	}
	owner := insert(models.RelationshipEdge{PropertyID: f.property, EntityID: f.entity, RelationshipType: models.RelPropertyOwner})
	operator := insert(models.RelationshipEdge{PropertyID: f.property, EntityID: f.oldEnt, RelationshipType: models.RelFacilityOperator})
	insert(models.RelationshipEdge{PropertyID: f.property, EntityID: f.oldEnt, RelationshipType: models.RelLender})
	insert(models.RelationshipEdge{PropertyID: f.property, EntityID: legacyEnt, RelationshipType: models.RelPropertyOwner})
	insert(models.RelationshipEdge{PropertyID: f.property, EntityID: f.oldEnt, RelationshipType: models.RelPropertyOwner,
		EndDate: ptr(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))})
	insert(models.RelationshipEdge{PropertyID: other, EntityID: f.entity, RelationshipType: models.RelPropertyOwner})

	got, err := f.st.ListPropertyAnchors(ctx, []int64{f.property})
	require.NoError(t, err)
	require.Len(t, got, 2, "lender, ended, tombstoned and other-property edges are excluded")
	assert.Equal(t, owner, got[0].EdgeID)
	assert.Equal(t, "Acme Holdings LLC", got[0].EntityName)
	assert.Equal(t, "Acme Health", got[0].CompanyName)
	assert.Equal(t, operator, got[1].EdgeID)
	assert.Equal(t, models.RelFacilityOperator, got[1].RelationshipType)

	got, err = f.st.ListPropertyAnchors(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMockStore_MergeCompany(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	moved, err := f.st.MergeCompany(ctx, f.acmeOld, f.acme, models.TombstoneName("Acme Health Care Inc"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved)

	c, err := f.st.GetCompany(ctx, f.acmeOld)
	require.NoError(t, err)
	assert.True(t, c.Tombstoned())
	assert.Equal(t, "[MERGED] Acme Health Care Inc", c.Name)
	require.NotNil(t, c.SupersededBy)
	assert.Equal(t, f.acme, *c.SupersededBy)

	ent, err := f.st.GetEntity(f.oldEnt)
	require.NoError(t, err)
	assert.Equal(t, f.acme, ent.CompanyID)

	_, err = f.st.MergeCompany(ctx, f.acmeOld, f.acme, "whatever")
	assert.ErrorIs(t, err, ErrCompanyNotActive)

	_, err = f.st.MergeCompany(ctx, 9999, f.acme, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMockStore_MergeCompanyRejectsTombstonedSurvivor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	third := f.st.AddCompany(models.Company{Name: "Acme HC"})
	thirdEnt := f.st.AddEntity(models.Entity{Name: "Acme HC Ops", CompanyID: third})

	_, err := f.st.MergeCompany(ctx, f.acmeOld, f.acme, models.TombstoneName("Acme Health Care Inc"))
	require.NoError(t, err)

	_, err = f.st.MergeCompany(ctx, third, f.acmeOld, "[MERGED] Acme HC")
	assert.ErrorIs(t, err, ErrCompanyNotActive)

	ent, err := f.st.GetEntity(thirdEnt)
	require.NoError(t, err)
	assert.Equal(t, third, ent.CompanyID, "nothing moves under a tombstoned company")
	c, err := f.st.GetCompany(ctx, third)
	require.NoError(t, err)
	assert.False(t, c.Tombstoned())
}

func TestMockStore_ListActiveEntityPairsSkipsTombstones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	legacy := f.st.AddCompany(models.Company{Name: "[MERGED] Old Name"})
	f.st.AddEntity(models.Entity{Name: "Legacy Entity", CompanyID: legacy})

	pairs, err := f.st.ListActiveEntityPairs(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	for _, p := range pairs {
		assert.NotEqual(t, legacy, p.CompanyID)
	}
}

func TestMockStore_DeleteEdgesHonorsType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, err := f.st.InsertEdge(ctx, models.RelationshipEdge{PropertyID: f.property, EntityID: f.entity, RelationshipType: models.RelPropertyOwner})
	require.NoError(t, err)
	operator, err := f.st.InsertEdge(ctx, models.RelationshipEdge{PropertyID: f.property, EntityID: f.entity, RelationshipType: models.RelFacilityOperator})
	require.NoError(t, err)

	n, err := f.st.DeleteEdges(ctx, []int64{owner, operator, 12345}, models.RelPropertyOwner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	edges := f.st.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, models.RelFacilityOperator, edges[0].RelationshipType)
}

func TestMockStore_Coverage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	second := f.st.AddProperty(models.Property{FacilityName: "Second"})

	_, err := f.st.InsertEdge(ctx, models.RelationshipEdge{PropertyID: f.property, EntityID: f.entity, RelationshipType: models.RelPropertyOwner})
	require.NoError(t, err)
	_, err = f.st.InsertEdge(ctx, models.RelationshipEdge{PropertyID: second, EntityID: f.oldEnt, RelationshipType: models.RelPropertyOwner})
	require.NoError(t, err)

	stats, err := f.st.Coverage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalProperties)
	assert.Equal(t, int64(2), stats.ByType[string(models.RelPropertyOwner)])
	assert.InDelta(t, 100.0, stats.Percent(string(models.RelPropertyOwner)), 0.001)

	_, err = f.st.MergeCompany(ctx, f.acmeOld, 9999, "x")
	require.ErrorIs(t, err, ErrNotFound)
	// Re-pointed entity keeps its edge, so coverage holds after a real merge.
	_, err = f.st.MergeCompany(ctx, f.acmeOld, f.acme, models.TombstoneName("Acme Health Care Inc"))
	require.NoError(t, err)
	stats, err = f.st.Coverage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ByType[string(models.RelPropertyOwner)])
}
