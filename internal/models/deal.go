package models

import "time"

// PartyRole is the role a named party plays in a deal.
type PartyRole string

const (
	RoleSeller   PartyRole = "seller"
	RoleBuyer    PartyRole = "buyer"
	RoleLender   PartyRole = "lender"
	RoleBorrower PartyRole = "borrower"
)

// LinkableRoles lists the roles the linker can resolve, in the order a full
// pass runs them.
var LinkableRoles = []PartyRole{
	RoleSeller,
	RoleBuyer,
	RoleLender,
	RoleBorrower,
}

// Property is a healthcare facility identified by its CMS certification number.
type Property struct {
	ID           int64  `json:"id" db:"id"`
	CCN          string `json:"ccn" db:"ccn"`
	FacilityName string `json:"facility_name" db:"facility_name"`
	Address      string `json:"address" db:"address"`
}

// Deal is a transaction event (sale, change of ownership, financing).
type Deal struct {
	ID            int64      `json:"id" db:"id"`
	PropertyID    *int64     `json:"property_id,omitempty" db:"property_master_id"`
	DealType      string     `json:"deal_type" db:"deal_type"`
	EffectiveDate *time.Time `json:"effective_date,omitempty" db:"effective_date"`
}

// DealParty is a free-text party attached to a deal. It is unresolved while
// EntityID is nil.
type DealParty struct {
	ID        int64     `json:"id" db:"id"`
	DealID    int64     `json:"deal_id" db:"deal_id"`
	Role      PartyRole `json:"party_role" db:"party_role"`
	PartyName string    `json:"party_name" db:"party_name"`
	CompanyID *int64    `json:"company_id,omitempty" db:"company_id"`
	EntityID  *int64    `json:"entity_id,omitempty" db:"entity_id"`
}

// Unresolved reports whether the party has not been matched to an entity.
func (p *DealParty) Unresolved() bool {
	return p.EntityID == nil
}

// UnresolvedParty is a linking candidate: a party name on a property that
// still lacks an edge of the party's relationship type.
type UnresolvedParty struct {
	PropertyID int64  `json:"property_id" db:"property_master_id"`
	DealID     int64  `json:"deal_id" db:"deal_id"`
	PartyName  string `json:"party_name" db:"party_name"`
}
