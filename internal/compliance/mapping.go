package compliance

import (
	"net/url"
	"strconv"

	"github.com/scrivenerhq/scrivener/pkg/query"
	"github.com/scrivenerhq/scrivener/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "compliance_rules", "r").
	Project("id", "ID").
	Project("jurisdiction", "Jurisdiction").
	Project("kind", "Kind").
	Project("pattern", "Pattern").
	Project("severity", "Severity").
	Project("suggested_alternative", "SuggestedAlternative").
	Project("active", "Active").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field: "Jurisdiction",
}

// Filters contains optional filtering criteria for rule queries.
// Nil fields are ignored. Jurisdiction, Kind, Severity, and Active use exact
// matching. Pattern uses case-insensitive contains matching.
type Filters struct {
	Jurisdiction *string   `json:"jurisdiction,omitempty"`
	Kind         *string   `json:"kind,omitempty"`
	Severity     *Severity `json:"severity,omitempty"`
	Pattern      *string   `json:"pattern,omitempty"`
	Active       *bool     `json:"active,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Jurisdiction", f.Jurisdiction).
		WhereEquals("Kind", f.Kind).
		WhereEquals("Severity", f.Severity).
		WhereContains("Pattern", f.Pattern).
		WhereEquals("Active", f.Active)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if j := values.Get("jurisdiction"); j != "" {
		normalized := NormalizeJurisdiction(j)
		f.Jurisdiction = &normalized
	}

	if k := values.Get("kind"); k != "" {
		f.Kind = &k
	}

	if s := values.Get("severity"); s != "" {
		severity := Severity(s)
		f.Severity = &severity
	}

	if p := values.Get("pattern"); p != "" {
		f.Pattern = &p
	}

	if a := values.Get("active"); a != "" {
		if v, err := strconv.ParseBool(a); err == nil {
			f.Active = &v
		}
	}

	return f
}

func scanRule(s repository.Scanner) (Rule, error) {
	var r Rule
	err := s.Scan(
		&r.ID,
		&r.Jurisdiction,
		&r.Kind,
		&r.Pattern,
		&r.Severity,
		&r.SuggestedAlternative,
		&r.Active,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}
