// Package nlp provides optional named-entity recognition for placeholder
// tokens. The recognizer is a capability-queried dependency: when the
// configured model is unreachable, disabled, or too slow, results degrade to
// Unavailable rather than failing the extraction path.
package nlp

import (
	"context"
	"time"

	"github.com/scrivenerhq/scrivener/internal/extraction"
)

// Entity categories surfaced to the variable set. Anything the model invents
// outside this set is mapped to CategoryOther.
const (
	CategoryPerson   = "PERSON"
	CategoryOrg      = "ORG"
	CategoryDate     = "DATE"
	CategoryMoney    = "MONEY"
	CategoryLocation = "LOCATION"
	CategoryOther    = "OTHER"
)

// Entity is one classified token: the normalized variable key it belongs to,
// its category, an optional proposed value, and the model's confidence.
type Entity struct {
	Key            string  `json:"key"`
	Category       string  `json:"category"`
	SuggestedValue string  `json:"suggested_value,omitempty"`
	Confidence     float64 `json:"confidence"`
}

// Result is the capability-tagged outcome of a recognition run. Available is
// false when classification could not run; Reason explains why so callers can
// surface the degradation without treating it as an error.
type Result struct {
	Available bool
	Reason    string
	Entities  []Entity
}

// Unavailable builds a degraded Result with the given reason.
func Unavailable(reason string) Result {
	return Result{Available: false, Reason: reason}
}

// Recognizer classifies placeholder tokens against document text.
type Recognizer interface {
	Recognize(ctx context.Context, text string, tokens []extraction.Token) Result
}

// Options bound the recognizer's runtime behavior.
type Options struct {
	Enabled             bool
	Timeout             time.Duration
	ConfidenceThreshold float64
}

// Annotations converts a recognition result into the per-key annotation map
// consumed by extraction.Merge. Entities below threshold were already
// discarded; duplicate keys keep the highest-confidence entry.
func Annotations(result Result) map[string]extraction.Annotation {
	if !result.Available {
		return nil
	}

	best := make(map[string]Entity, len(result.Entities))
	for _, e := range result.Entities {
		if prev, ok := best[e.Key]; ok && prev.Confidence >= e.Confidence {
			continue
		}
		best[e.Key] = e
	}

	annotations := make(map[string]extraction.Annotation, len(best))
	for key, e := range best {
		annotations[key] = extraction.Annotation{
			Category:       e.Category,
			SuggestedValue: e.SuggestedValue,
		}
	}
	return annotations
}
