package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/scrivenerhq/scrivener/internal/extraction"
	"github.com/scrivenerhq/scrivener/internal/nlp"
)

// FinalizeNode returns a state node that merges pattern tokens with any
// entity annotations into the canonical variable set and assembles the
// ExtractionResult. When the classify node was skipped or degraded, the
// result carries pattern data only.
func FinalizeNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		text, err := extractText(s)
		if err != nil {
			return s, fmt.Errorf("finalize: %w", err)
		}

		tokens, err := extractTokens(s)
		if err != nil {
			return s, fmt.Errorf("finalize: %w", err)
		}

		recognition := extractRecognition(s)

		result := ExtractionResult{
			Variables:   extraction.Merge(tokens, nlp.Annotations(recognition)),
			Text:        text,
			TokenCount:  len(tokens),
			CompletedAt: time.Now(),
		}

		if !recognition.Available {
			result.Degraded = true
			result.DegradedReason = recognition.Reason
		}

		rt.Logger.InfoContext(
			ctx, "finalize node complete",
			"variable_count", len(result.Variables),
			"degraded", result.Degraded,
		)

		s = s.Set(KeyResult, result)
		return s, nil
	})
}

// extractRecognition tolerates a missing recognition entry: the classify node
// is skipped entirely when no tokens were found, and an empty document is not
// a degraded one.
func extractRecognition(s state.State) nlp.Result {
	val, ok := s.Get(KeyRecognition)
	if !ok {
		return nlp.Result{Available: true}
	}

	result, ok := val.(nlp.Result)
	if !ok {
		return nlp.Unavailable("entity classifier produced invalid state")
	}

	return result
}
