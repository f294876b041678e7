package linker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/atlas-linker/internal/models"
	"github.com/ajitpratap0/atlas-linker/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func addSellerDeal(st *store.MockStore, propertyID int64, name string) int64 {
	deal := st.AddDeal(models.Deal{PropertyID: &propertyID, DealType: "sale"})
	st.AddDealParty(models.DealParty{DealID: deal, Role: models.RoleSeller, PartyName: name})
	return deal
}

func edgesOfType(st *store.MockStore, relType models.RelationshipType) []models.RelationshipEdge {
	var out []models.RelationshipEdge
	for _, e := range st.Edges() {
		if e.RelationshipType == relType {
			out = append(out, e)
		}
	}
	return out
}

func TestLinkUnresolved_EndToEnd(t *testing.T) {
	st := store.NewMockStore()
	company := st.AddCompany(models.Company{Name: "Acme Care Group"})
	entity := st.AddEntity(models.Entity{Name: "ACME CARE", CompanyID: company})
	property := st.AddProperty(models.Property{CCN: "055001", FacilityName: "Acme Care Center"})
	addSellerDeal(st, property, "ACME CARE LLC")

	l := New(st, testLogger())
	report, err := l.LinkUnresolved(context.Background(), "seller")
	require.NoError(t, err)

	assert.Equal(t, models.RelPropertySeller, report.RelationshipType)
	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 1, report.MatchedExact)
	assert.NotEmpty(t, report.RunID)

	edges := edgesOfType(st, models.RelPropertySeller)
	require.Len(t, edges, 1)
	assert.Equal(t, property, edges[0].PropertyID)
	assert.Equal(t, entity, edges[0].EntityID)
	assert.Equal(t, DefaultDataSource, edges[0].DataSource)
	assert.Contains(t, edges[0].Notes, report.RunID)
	assert.Contains(t, edges[0].Notes, "exact")

	for _, p := range st.DealParties() {
		assert.Nil(t, p.EntityID, "deal parties are never mutated")
	}
}

func TestLinkUnresolved_Idempotent(t *testing.T) {
	st := store.NewMockStore()
	company := st.AddCompany(models.Company{Name: "Windsor Healthcare Properties Group"})
	st.AddEntity(models.Entity{Name: "Windsor Chico Care Center LLC", CompanyID: company})
	p1 := st.AddProperty(models.Property{FacilityName: "Windsor Chico"})
	p2 := st.AddProperty(models.Property{FacilityName: "Windsor Redding"})
	addSellerDeal(st, p1, "Windsor Chico Care Center, LLC")
	addSellerDeal(st, p2, "WINDSOR HEALTHCARE PROPERTIES OF REDDING")
	addSellerDeal(st, p2, "Unknown Seller Partners")

	l := New(st, testLogger())
	first, err := l.LinkUnresolved(context.Background(), "seller")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Matched)
	assert.Equal(t, 1, first.MatchedRoot)
	count := len(st.Edges())

	second, err := l.LinkUnresolved(context.Background(), "seller")
	require.NoError(t, err)
	assert.Zero(t, second.Matched)
	assert.Zero(t, second.Candidates)
	assert.Len(t, st.Edges(), count)
}

func TestLinkUnresolved_OneEdgePerProperty(t *testing.T) {
	st := store.NewMockStore()
	a := st.AddCompany(models.Company{Name: "Alpha Senior Living"})
	b := st.AddCompany(models.Company{Name: "Beta Living Partners"})
	st.AddEntity(models.Entity{Name: "Alpha Senior Living", CompanyID: a})
	st.AddEntity(models.Entity{Name: "Beta Living Partners", CompanyID: b})
	property := st.AddProperty(models.Property{FacilityName: "Shared Facility"})
	addSellerDeal(st, property, "Alpha Senior Living")
	addSellerDeal(st, property, "Beta Living Partners")

	report, err := New(st, testLogger()).LinkUnresolved(context.Background(), "seller")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, edgesOfType(st, models.RelPropertySeller), 1)
}

func TestLinkUnresolved_MissesAreSampled(t *testing.T) {
	st := store.NewMockStore()
	for i := 0; i < 5; i++ {
		p := st.AddProperty(models.Property{FacilityName: "Facility"})
		addSellerDeal(st, p, "Nobody Known "+strings.Repeat("X", i+1))
	}

	report, err := New(st, testLogger(), WithSampleSizes(1, 3)).LinkUnresolved(context.Background(), "seller")
	require.NoError(t, err)
	assert.Equal(t, 5, report.Unmatched)
	assert.Len(t, report.SampleMisses, 3)
	assert.Equal(t, "NOBODY KNOWN X", report.SampleMisses[0].Key)
	assert.Empty(t, st.Edges())
}

func TestLinkUnresolved_DryRunWritesNothing(t *testing.T) {
	st := store.NewMockStore()
	c := st.AddCompany(models.Company{Name: "Acme Care"})
	st.AddEntity(models.Entity{Name: "Acme Care", CompanyID: c})
	p := st.AddProperty(models.Property{FacilityName: "Acme"})
	addSellerDeal(st, p, "ACME CARE INC")

	report, err := New(st, testLogger(), WithDryRun(true)).LinkUnresolved(context.Background(), "seller")
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Matched)
	assert.Empty(t, st.Edges())
}

func TestLinkUnresolved_IgnoresTombstonedTargets(t *testing.T) {
	st := store.NewMockStore()
	survivor := st.AddCompany(models.Company{Name: "Survivor Health"})
	st.AddEntity(models.Entity{Name: "Survivor Health", CompanyID: survivor})
	dead := st.AddCompany(models.Company{Name: "[MERGED] Fragment Care"})
	st.AddEntity(models.Entity{Name: "Fragment Care Entity", CompanyID: dead})
	p := st.AddProperty(models.Property{FacilityName: "X"})
	addSellerDeal(st, p, "Fragment Care Entity")

	report, err := New(st, testLogger()).LinkUnresolved(context.Background(), "seller")
	require.NoError(t, err)
	assert.Zero(t, report.Matched)
	assert.Equal(t, 1, report.Unmatched)
}

func TestLinkUnresolved_UnknownRole(t *testing.T) {
	st := &failingStore{MockStore: store.NewMockStore(), listErr: errors.New("should not be called")}
	_, err := New(st, testLogger()).LinkUnresolved(context.Background(), "operator")
	assert.ErrorIs(t, err, ErrUnknownRole)
}

// failingStore injects errors and races around a MockStore.
type failingStore struct {
	*store.MockStore
	listErr   error
	insertErr error
	anchorErr error
	racing    bool
}

func (f *failingStore) ListPropertyAnchors(ctx context.Context, propertyIDs []int64) ([]models.PropertyAnchor, error) {
	if f.anchorErr != nil {
		return nil, f.anchorErr
	}
	return f.MockStore.ListPropertyAnchors(ctx, propertyIDs)
}

func (f *failingStore) ListActiveEntityPairs(ctx context.Context) ([]models.EntityPair, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.MockStore.ListActiveEntityPairs(ctx)
}

func (f *failingStore) InsertEdge(ctx context.Context, edge models.RelationshipEdge) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	if f.racing {
		// Another writer inserts the same edge first.
		if _, err := f.MockStore.InsertEdge(ctx, edge); err != nil {
			return 0, err
		}
	}
	return f.MockStore.InsertEdge(ctx, edge)
}

func TestLinkUnresolved_DuplicateIsSwallowed(t *testing.T) {
	ms := store.NewMockStore()
	c := ms.AddCompany(models.Company{Name: "Acme Care"})
	ms.AddEntity(models.Entity{Name: "Acme Care", CompanyID: c})
	p := ms.AddProperty(models.Property{FacilityName: "Acme"})
	addSellerDeal(ms, p, "Acme Care")

	report, err := New(&failingStore{MockStore: ms, racing: true}, testLogger()).LinkUnresolved(context.Background(), "seller")
	require.NoError(t, err)
	assert.Zero(t, report.Matched)
	assert.Equal(t, 1, report.AlreadyLinked)
	assert.Len(t, ms.Edges(), 1)
}

func TestLinkUnresolved_StorageErrorAborts(t *testing.T) {
	ms := store.NewMockStore()
	c := ms.AddCompany(models.Company{Name: "Acme Care"})
	ms.AddEntity(models.Entity{Name: "Acme Care", CompanyID: c})
	p := ms.AddProperty(models.Property{FacilityName: "Acme"})
	addSellerDeal(ms, p, "Acme Care")

	boom := errors.New("connection reset")
	_, err := New(&failingStore{MockStore: ms, insertErr: boom}, testLogger()).LinkUnresolved(context.Background(), "seller")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	_, err = New(&failingStore{MockStore: ms, listErr: boom}, testLogger()).LinkUnresolved(context.Background(), "seller")
	assert.ErrorIs(t, err, boom)
}

func TestLinkRoles_RunsEveryRole(t *testing.T) {
	st := store.NewMockStore()
	c := st.AddCompany(models.Company{Name: "First National Capital"})
	st.AddEntity(models.Entity{Name: "First National Capital", CompanyID: c})
	p := st.AddProperty(models.Property{FacilityName: "Facility"})
	deal := st.AddDeal(models.Deal{PropertyID: &p, DealType: "financing"})
	st.AddDealParty(models.DealParty{DealID: deal, Role: models.RoleLender, PartyName: "First National Capital LLC"})
	st.AddDealParty(models.DealParty{DealID: deal, Role: models.RoleBorrower, PartyName: "First National Capital"})

	reports, err := New(st, testLogger()).LinkRoles(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, len(models.LinkableRoles))
	assert.Len(t, edgesOfType(st, models.RelLender), 1)
	assert.Len(t, edgesOfType(st, models.RelPropertyBorrower), 1)
}

func addPartyDeal(st *store.MockStore, propertyID int64, role models.PartyRole, name string) {
	deal := st.AddDeal(models.Deal{PropertyID: &propertyID, DealType: "financing"})
	st.AddDealParty(models.DealParty{DealID: deal, Role: role, PartyName: name})
}

func attach(t *testing.T, st *store.MockStore, propertyID, entityID int64, relType models.RelationshipType) {
	t.Helper()
	_, err := st.InsertEdge(context.Background(), models.RelationshipEdge{PropertyID: propertyID, EntityID: entityID, RelationshipType: relType})
	require.NoError(t, err)
}

func TestLinkUnresolved_OwnerAnchorLocationKey(t *testing.T) {
	st := store.NewMockStore()
	c := st.AddCompany(models.Company{Name: "Whitesburg Holdings"})
	owner := st.AddEntity(models.Entity{Name: "Whitesburg SNF Operations", CompanyID: c})
	owned := st.AddProperty(models.Property{FacilityName: "Whitesburg Nursing"})
	operated := st.AddProperty(models.Property{FacilityName: "Whitesburg Annex"})
	attach(t, st, owned, owner, models.RelPropertyOwner)
	attach(t, st, operated, owner, models.RelFacilityOperator)
	addPartyDeal(st, owned, models.RoleBorrower, "WHITESBURG SNF REALTY")
	addPartyDeal(st, operated, models.RoleBorrower, "WHITESBURG SNF REALTY")

	plain, err := New(st, testLogger(), WithDryRun(true)).LinkUnresolved(context.Background(), "borrower")
	require.NoError(t, err)
	assert.Equal(t, 2, plain.Unmatched, "the global index cannot place the borrower")

	report, err := New(st, testLogger(), WithOwnerAnchor(true)).LinkUnresolved(context.Background(), "borrower")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Matched)
	assert.Equal(t, 1, report.MatchedLocation)
	assert.Equal(t, 1, report.Unmatched, "location keys only match owner entities")
	require.Len(t, report.SampleMatches, 1)
	assert.Equal(t, StrategyLocation, report.SampleMatches[0].Strategy)
	assert.Equal(t, "WHITESBURG", report.SampleMatches[0].Key)

	edges := edgesOfType(st, models.RelPropertyBorrower)
	require.Len(t, edges, 1)
	assert.Equal(t, owned, edges[0].PropertyID)
	assert.Equal(t, owner, edges[0].EntityID)
	assert.Contains(t, edges[0].Notes, "location match")
}

func TestLinkUnresolved_OwnerAnchorBeatsGlobalIndex(t *testing.T) {
	st := store.NewMockStore()
	first := st.AddCompany(models.Company{Name: "Sunrise Care"})
	second := st.AddCompany(models.Company{Name: "Sunrise Senior Holdings"})
	global := st.AddEntity(models.Entity{Name: "Sunrise Care LLC", CompanyID: first})
	local := st.AddEntity(models.Entity{Name: "Sunrise Care", CompanyID: second})
	property := st.AddProperty(models.Property{FacilityName: "Sunrise Manor"})
	attach(t, st, property, local, models.RelPropertyOwner)
	addPartyDeal(st, property, models.RoleBuyer, "Sunrise Care, Inc.")
	addPartyDeal(st, property, models.RoleSeller, "Sunrise Care, Inc.")

	l := New(st, testLogger(), WithOwnerAnchor(true))
	buyers, err := l.LinkUnresolved(context.Background(), "buyer")
	require.NoError(t, err)
	assert.Equal(t, 1, buyers.MatchedAnchor)
	assert.Zero(t, buyers.MatchedExact)
	edges := edgesOfType(st, models.RelPropertyBuyer)
	require.Len(t, edges, 1)
	assert.Equal(t, local, edges[0].EntityID, "the property's own owner wins over the first writer")

	sellers, err := l.LinkUnresolved(context.Background(), "seller")
	require.NoError(t, err)
	assert.Equal(t, 1, sellers.MatchedExact, "sellers are not anchored")
	edges = edgesOfType(st, models.RelPropertySeller)
	require.Len(t, edges, 1)
	assert.Equal(t, global, edges[0].EntityID)
}

func TestLinkUnresolved_OwnerAnchorPrefersOwnerOverOperator(t *testing.T) {
	st := store.NewMockStore()
	c := st.AddCompany(models.Company{Name: "Cedar Ridge Health"})
	operator := st.AddEntity(models.Entity{Name: "Cedar Ridge Operations", CompanyID: c})
	owner := st.AddEntity(models.Entity{Name: "Cedar Ridge Propco", CompanyID: c})
	property := st.AddProperty(models.Property{FacilityName: "Cedar Ridge"})
	attach(t, st, property, operator, models.RelFacilityOperator)
	attach(t, st, property, owner, models.RelPropertyOwner)
	addPartyDeal(st, property, models.RoleBorrower, "Cedar Ridge Health LLC")

	report, err := New(st, testLogger(), WithOwnerAnchor(true)).LinkUnresolved(context.Background(), "borrower")
	require.NoError(t, err)
	assert.Equal(t, 1, report.MatchedAnchor)
	edges := edgesOfType(st, models.RelPropertyBorrower)
	require.Len(t, edges, 1)
	assert.Equal(t, owner, edges[0].EntityID, "company name matches both, the owner edge is preferred")
}

func TestLinkUnresolved_AnchorErrorAborts(t *testing.T) {
	ms := store.NewMockStore()
	p := ms.AddProperty(models.Property{FacilityName: "Facility"})
	addPartyDeal(ms, p, models.RoleBorrower, "Anyone")

	boom := errors.New("connection reset")
	st := &failingStore{MockStore: ms, anchorErr: boom}
	_, err := New(st, testLogger(), WithOwnerAnchor(true)).LinkUnresolved(context.Background(), "borrower")
	assert.ErrorIs(t, err, boom)

	_, err = New(st, testLogger(), WithOwnerAnchor(true)).LinkUnresolved(context.Background(), "lender")
	assert.NoError(t, err, "lender passes never read anchors")
}
