package workflow

import (
	"context"
	"fmt"

	"github.com/JaimeStill/go-agents-orchestration/pkg/state"
)

// ClassifyNode returns a state node that runs entity recognition over the
// extracted tokens. Recognition never fails the pipeline: unavailability is
// recorded in the result and the variable set falls back to pattern data.
func ClassifyNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		text, err := extractText(s)
		if err != nil {
			return s, fmt.Errorf("classify: %w", err)
		}

		tokens, err := extractTokens(s)
		if err != nil {
			return s, fmt.Errorf("classify: %w", err)
		}

		result := rt.Recognizer.Recognize(ctx, text, tokens)

		rt.Logger.InfoContext(
			ctx, "classify node complete",
			"available", result.Available,
			"entity_count", len(result.Entities),
		)

		s = s.Set(KeyRecognition, result)
		return s, nil
	})
}
