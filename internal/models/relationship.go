package models

import "time"

// RelationshipType is the kind of link between a property and an entity.
type RelationshipType string

const (
	RelPropertyOwner    RelationshipType = "property_owner"
	RelFacilityOperator RelationshipType = "facility_operator"
	RelLender           RelationshipType = "lender"
	RelPropertyBuyer    RelationshipType = "property_buyer"
	RelPropertySeller   RelationshipType = "property_seller"
	RelPropertyBorrower RelationshipType = "property_borrower"
)

// roleRelationships is the fixed role to relationship type mapping.
var roleRelationships = map[PartyRole]RelationshipType{
	RoleSeller:   RelPropertySeller,
	RoleBuyer:    RelPropertyBuyer,
	RoleLender:   RelLender,
	RoleBorrower: RelPropertyBorrower,
}

// RelationshipForRole returns the relationship type a resolved party of the
// given role produces.
func RelationshipForRole(role PartyRole) (RelationshipType, bool) {
	rt, ok := roleRelationships[role]
	return rt, ok
}

// RelationshipEdge links a property to an entity (property_entity_relationships).
// An edge is active while EndDate is nil.
type RelationshipEdge struct {
	ID               int64            `json:"id" db:"id"`
	PropertyID       int64            `json:"property_id" db:"property_master_id"`
	EntityID         int64            `json:"entity_id" db:"entity_id"`
	RelationshipType RelationshipType `json:"relationship_type" db:"relationship_type"`
	EffectiveDate    *time.Time       `json:"effective_date,omitempty" db:"effective_date"`
	EndDate          *time.Time       `json:"end_date,omitempty" db:"end_date"`
	DataSource       string           `json:"data_source" db:"data_source"`
	Notes            string           `json:"notes" db:"notes"`
}

// Active reports whether the edge has not been ended.
func (e *RelationshipEdge) Active() bool {
	return e.EndDate == nil
}

// AnchorRelationships are the edge types whose entities anchor
// property-scoped resolution, in order of preference.
var AnchorRelationships = []RelationshipType{RelPropertyOwner, RelFacilityOperator}

// PropertyAnchor is an entity already attached to a property as owner or
// operator. Other parties of the same property are matched against it.
type PropertyAnchor struct {
	EdgeID           int64            `json:"edge_id" db:"edge_id"`
	PropertyID       int64            `json:"property_id" db:"property_master_id"`
	EntityID         int64            `json:"entity_id" db:"entity_id"`
	RelationshipType RelationshipType `json:"relationship_type" db:"relationship_type"`
	EntityName       string           `json:"entity_name" db:"entity_name"`
	CompanyName      string           `json:"company_name" db:"company_name"`
}

// EdgeDetail is an edge joined with the property, entity and company it
// connects. The audit works on these rows.
type EdgeDetail struct {
	RelationshipEdge
	FacilityName string `json:"facility_name" db:"facility_name"`
	CCN          string `json:"ccn" db:"ccn"`
	EntityName   string `json:"entity_name" db:"entity_name"`
	CompanyID    int64  `json:"company_id" db:"company_id"`
	CompanyName  string `json:"company_name" db:"company_name"`
	CompanyType  string `json:"company_type" db:"company_type"`
}

// CoverageStats counts, per relationship type, the properties holding at
// least one active edge to an entity of an active company.
type CoverageStats struct {
	TotalProperties int64            `json:"total_properties"`
	ByType          map[string]int64 `json:"by_type"`
}

// Percent returns the share of properties covered by relType, 0 to 100.
func (c *CoverageStats) Percent(relType string) float64 {
	if c.TotalProperties == 0 {
		return 0
	}
	return float64(c.ByType[relType]) / float64(c.TotalProperties) * 100
}
