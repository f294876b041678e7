package audit

import (
	"strings"

	"github.com/ajitpratap0/atlas-linker/internal/models"
)

// Pattern is a tagged keyword matched against owning company names.
type Pattern struct {
	Tag     string `json:"tag"`
	Keyword string `json:"keyword"`
}

// PatternSet is an ordered list of patterns.
type PatternSet []Pattern

// DefaultPatterns returns the keywords that identify hospital-type operators,
// which are rarely the owner of a skilled-nursing property.
func DefaultPatterns() PatternSet {
	return PatternSet{
		{Tag: "hospital", Keyword: "HOSPITAL"},
		{Tag: "medical_center", Keyword: "MEDICAL CENTER"},
		{Tag: "health_system", Keyword: "HEALTH SYSTEM"},
		{Tag: "hospital_district", Keyword: "HOSPITAL DISTRICT"},
		{Tag: "hospital_authority", Keyword: "HOSPITAL AUTHORITY"},
		{Tag: "healthcare_district", Keyword: "HEALTHCARE DISTRICT"},
		{Tag: "county_hospital", Keyword: "COUNTY HOSPITAL"},
		{Tag: "memorial_hospital", Keyword: "MEMORIAL HOSPITAL"},
		{Tag: "regional_hospital", Keyword: "REGIONAL HOSPITAL"},
	}
}

// Match returns the pattern whose keyword occurs in name, ignoring case.
// When several match, the longest keyword wins; ties go to the earlier one.
func (ps PatternSet) Match(name string) (Pattern, bool) {
	upper := strings.ToUpper(name)
	var best Pattern
	found := false
	for _, p := range ps {
		kw := strings.ToUpper(p.Keyword)
		if kw == "" || !strings.Contains(upper, kw) {
			continue
		}
		if !found || len(kw) > len(best.Keyword) {
			best = p
			found = true
		}
	}
	return best, found
}

// ProvenanceRule identifies edges written by an automated process.
// An empty NotesContains matches any notes.
type ProvenanceRule struct {
	DataSource    string `json:"data_source"`
	NotesContains string `json:"notes_contains"`
}

// DefaultProvenance returns the rules for the linker and the CRM import.
func DefaultProvenance() []ProvenanceRule {
	return []ProvenanceRule{
		{DataSource: "linked"},
		{DataSource: "zoho", NotesContains: "CRM junction"},
	}
}

// Matches reports whether edge was written by the process the rule describes.
func (r ProvenanceRule) Matches(edge *models.RelationshipEdge) bool {
	if edge.DataSource != r.DataSource {
		return false
	}
	return r.NotesContains == "" || strings.Contains(edge.Notes, r.NotesContains)
}
