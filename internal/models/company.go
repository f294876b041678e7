package models

import "strings"

// TombstonePrefix marks the name of a company that was merged into another.
// Rows written before the status column existed carry only this prefix, so
// every read path checks both.
const TombstonePrefix = "[MERGED]"

// CompanyType classifies a company's role in the ownership structure.
type CompanyType string

const (
	CompanyTypeOpco       CompanyType = "opco"
	CompanyTypePropco     CompanyType = "propco"
	CompanyTypeManagement CompanyType = "management"
	CompanyTypeHolding    CompanyType = "holding"
	CompanyTypePEFirm     CompanyType = "pe_firm"
	CompanyTypeREIT       CompanyType = "reit"
	CompanyTypeOther      CompanyType = "other"
)

// ValidCompanyTypes is the set of all valid company types.
var ValidCompanyTypes = []CompanyType{
	CompanyTypeOpco,
	CompanyTypePropco,
	CompanyTypeManagement,
	CompanyTypeHolding,
	CompanyTypePEFirm,
	CompanyTypeREIT,
	CompanyTypeOther,
}

// IsValid returns true if the company type is recognized.
func (ct CompanyType) IsValid() bool {
	for _, v := range ValidCompanyTypes {
		if ct == v {
			return true
		}
	}
	return false
}

// CompanyStatus records whether a company is live or was merged away.
type CompanyStatus string

const (
	CompanyStatusActive CompanyStatus = "active"
	CompanyStatusMerged CompanyStatus = "merged"
)

// Company is a parent organization owning one or more legal entities.
type Company struct {
	ID           int64         `json:"id" db:"id"`
	Name         string        `json:"name" db:"company_name"`
	Type         CompanyType   `json:"type" db:"company_type"`
	Status       CompanyStatus `json:"status" db:"status"`
	SupersededBy *int64        `json:"superseded_by,omitempty" db:"superseded_by"`
}

// Tombstoned reports whether the company was merged into another one.
func (c *Company) Tombstoned() bool {
	return c.Status == CompanyStatusMerged || HasTombstonePrefix(c.Name)
}

// HasTombstonePrefix reports whether a company name carries the merge marker.
func HasTombstonePrefix(name string) bool {
	return strings.HasPrefix(name, TombstonePrefix)
}

// TombstoneName returns the name a company is renamed to when merged.
// Names that already carry the marker are returned unchanged.
func TombstoneName(name string) string {
	if HasTombstonePrefix(name) {
		return name
	}
	return TombstonePrefix + " " + name
}

// Entity is a legal entity. It is the node that actually holds relationships
// to properties, and always belongs to exactly one company.
type Entity struct {
	ID        int64  `json:"id" db:"id"`
	Name      string `json:"name" db:"entity_name"`
	CompanyID int64  `json:"company_id" db:"company_id"`
}

// Principal is an individual person linked to companies and entities.
type Principal struct {
	ID       int64  `json:"id" db:"id"`
	FullName string `json:"full_name" db:"full_name"`
}

// EntityPair joins an entity with its owning company. Pairs are the rows the
// resolution index is built from.
type EntityPair struct {
	EntityID      int64         `json:"entity_id" db:"entity_id"`
	EntityName    string        `json:"entity_name" db:"entity_name"`
	CompanyID     int64         `json:"company_id" db:"company_id"`
	CompanyName   string        `json:"company_name" db:"company_name"`
	CompanyStatus CompanyStatus `json:"company_status" db:"company_status"`
}

// Tombstoned reports whether the pair's company was merged away.
func (p *EntityPair) Tombstoned() bool {
	return p.CompanyStatus == CompanyStatusMerged || HasTombstonePrefix(p.CompanyName)
}
