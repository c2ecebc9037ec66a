package workflow

import (
	"log/slog"

	"github.com/scrivenerhq/scrivener/internal/nlp"
)

// Runtime bundles the dependencies that pipeline nodes require.
// It is constructed by higher-level composition code from Infrastructure and Domain systems.
type Runtime struct {
	Recognizer nlp.Recognizer
	Logger     *slog.Logger
}
