package workflow

import (
	"context"
	"fmt"

	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/scrivenerhq/scrivener/internal/docx"
)

// LoadNode returns a state node that opens the working .docx file and stores
// its plain-text snapshot in the state bag. Corruption errors from the
// archive layer pass through wrapped so callers can map them by sentinel.
func LoadNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		path, err := extractPath(s)
		if err != nil {
			return s, fmt.Errorf("load: %w", err)
		}

		doc, err := docx.Open(path)
		if err != nil {
			return s, fmt.Errorf("load: %w: %w", ErrLoadFailed, err)
		}

		text := doc.Text()

		rt.Logger.InfoContext(
			ctx, "load node complete",
			"path", path,
			"text_length", len(text),
		)

		s = s.Set(KeyText, text)
		return s, nil
	})
}

func extractPath(s state.State) (string, error) {
	val, ok := s.Get(KeyDocumentPath)
	if !ok {
		return "", fmt.Errorf("%w: missing %s in state", ErrLoadFailed, KeyDocumentPath)
	}

	path, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is not string", ErrLoadFailed, KeyDocumentPath)
	}

	return path, nil
}
