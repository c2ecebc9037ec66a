package workflow

import (
	"context"
	"fmt"

	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/scrivenerhq/scrivener/internal/extraction"
)

// TokensNode returns a state node that scans the text snapshot for
// placeholder tokens across all delimiter grammars. Zero tokens is a valid
// outcome, not a failure.
func TokensNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		text, err := extractText(s)
		if err != nil {
			return s, fmt.Errorf("tokens: %w", err)
		}

		tokens := extraction.Tokens(text)

		rt.Logger.InfoContext(
			ctx, "tokens node complete",
			"token_count", len(tokens),
		)

		s = s.Set(KeyTokens, tokens)
		return s, nil
	})
}

func extractText(s state.State) (string, error) {
	val, ok := s.Get(KeyText)
	if !ok {
		return "", fmt.Errorf("%w: missing %s in state", ErrExtractFailed, KeyText)
	}

	text, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is not string", ErrExtractFailed, KeyText)
	}

	return text, nil
}

func extractTokens(s state.State) ([]extraction.Token, error) {
	val, ok := s.Get(KeyTokens)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s in state", ErrExtractFailed, KeyTokens)
	}

	tokens, ok := val.([]extraction.Token)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not []extraction.Token", ErrExtractFailed, KeyTokens)
	}

	return tokens, nil
}
