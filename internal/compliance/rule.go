// Package compliance implements jurisdiction-scoped rule management and
// document analysis. Rules match sentences by phrase or regular expression
// and produce severity-tagged findings against a session's text snapshot.
package compliance

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity represents the weight of a compliance finding.
type Severity string

// Severity levels for compliance rules and findings.
const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether the severity is one of the known levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Rule kinds.
const (
	KindPhrase = "phrase"
	KindRegex  = "regex"
)

// Rule is a persisted compliance rule. Phrase rules match case-insensitive
// substrings; regex rules match Go regular expressions. Inactive rules are
// retained but excluded from analysis.
type Rule struct {
	ID                   uuid.UUID `json:"id"`
	Jurisdiction         string    `json:"jurisdiction"`
	Kind                 string    `json:"kind"`
	Pattern              string    `json:"pattern"`
	Severity             Severity  `json:"severity"`
	SuggestedAlternative string    `json:"suggested_alternative"`
	Active               bool      `json:"active"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// CreateCommand carries the data needed to register a new rule.
type CreateCommand struct {
	Jurisdiction         string   `json:"jurisdiction"`
	Kind                 string   `json:"kind"`
	Pattern              string   `json:"pattern"`
	Severity             Severity `json:"severity"`
	SuggestedAlternative string   `json:"suggested_alternative"`
}

// Validate normalizes and checks the command, compiling regex patterns so
// malformed rules are rejected at registration rather than at analysis.
func (c *CreateCommand) Validate() error {
	c.Jurisdiction = NormalizeJurisdiction(c.Jurisdiction)
	c.Pattern = strings.TrimSpace(c.Pattern)

	if c.Jurisdiction == "" || c.Pattern == "" {
		return ErrInvalidRule
	}

	switch c.Kind {
	case KindPhrase:
	case KindRegex:
		if _, err := regexp.Compile(c.Pattern); err != nil {
			return ErrInvalidRule
		}
	default:
		return ErrInvalidRule
	}

	if !c.Severity.Valid() {
		return ErrInvalidRule
	}

	return nil
}

// UpdateCommand carries mutable rule fields. Nil fields are left unchanged.
type UpdateCommand struct {
	Pattern              *string   `json:"pattern,omitempty"`
	Severity             *Severity `json:"severity,omitempty"`
	SuggestedAlternative *string   `json:"suggested_alternative,omitempty"`
	Active               *bool     `json:"active,omitempty"`
}

// Apply folds the update onto a rule and validates the result.
func (c UpdateCommand) Apply(r *Rule) error {
	if c.Pattern != nil {
		pattern := strings.TrimSpace(*c.Pattern)
		if pattern == "" {
			return ErrInvalidRule
		}
		if r.Kind == KindRegex {
			if _, err := regexp.Compile(pattern); err != nil {
				return ErrInvalidRule
			}
		}
		r.Pattern = pattern
	}

	if c.Severity != nil {
		if !c.Severity.Valid() {
			return ErrInvalidRule
		}
		r.Severity = *c.Severity
	}

	if c.SuggestedAlternative != nil {
		r.SuggestedAlternative = *c.SuggestedAlternative
	}

	if c.Active != nil {
		r.Active = *c.Active
	}

	return nil
}

// NormalizeJurisdiction canonicalizes a jurisdiction code for storage and lookup.
func NormalizeJurisdiction(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Finding is one rule match against one sentence of the analyzed document.
// SourceText carries the full matched sentence so the client can locate and
// highlight it.
type Finding struct {
	RuleID               uuid.UUID `json:"rule_id"`
	Jurisdiction         string    `json:"jurisdiction"`
	Severity             Severity  `json:"severity"`
	SuggestedAlternative string    `json:"suggested_alternative,omitempty"`
	SourceText           string    `json:"source_text"`
	SentenceIndex        int       `json:"sentence_index"`
	Match                string    `json:"match"`
}

// AnalysisResult is the outcome of analyzing a session document against a
// jurisdiction's active rule set.
type AnalysisResult struct {
	DocumentID     uuid.UUID `json:"document_id"`
	Jurisdiction   string    `json:"jurisdiction"`
	EvaluatedRules int       `json:"evaluated_rules"`
	Findings       []Finding `json:"findings"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}
