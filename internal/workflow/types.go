package workflow

import (
	"time"

	"github.com/scrivenerhq/scrivener/internal/extraction"
)

const (
	KeyDocumentPath = "document_path"
	KeyText         = "text"
	KeyTokens       = "tokens"
	KeyRecognition  = "recognition"
	KeyResult       = "result"
)

// ExtractionResult is the final output from an extraction pipeline execution:
// the merged variable set, the text snapshot it was derived from, and the
// degradation flag carried when entity classification could not run.
type ExtractionResult struct {
	Variables      []extraction.Variable `json:"variables"`
	Text           string                `json:"-"`
	TokenCount     int                   `json:"token_count"`
	Degraded       bool                  `json:"degraded"`
	DegradedReason string                `json:"degraded_reason,omitempty"`
	CompletedAt    time.Time             `json:"completed_at"`
}
