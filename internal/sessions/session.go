// Package sessions implements the document session domain. A session pairs a
// persisted document record and its blob revisions with a local working copy
// and the cached variable set extracted from it. Mutating operations are
// serialized per document and bump the session version.
package sessions

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scrivenerhq/scrivener/internal/extraction"
)

// DocxContentType is the MIME type for .docx uploads and revision blobs.
const DocxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Document statuses.
const (
	StatusActive = "active"
)

// Document is the persisted session record. StorageKey always references the
// latest revision blob. InjectedKeys holds normalized keys whose token forms
// were introduced by replacement values; variables with those keys are
// suppressed from extraction results for the life of the session.
type Document struct {
	ID           uuid.UUID `json:"id"`
	Filename     string    `json:"filename"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	StorageKey   string    `json:"storage_key"`
	Version      int       `json:"version"`
	Status       string    `json:"status"`
	InjectedKeys []string  `json:"-"`
	UploadedAt   time.Time `json:"uploaded_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CacheKey derives the editor cache identity for the current revision. Any
// version bump produces a new key, which forces the editor to discard its
// cached copy and reload.
func (d Document) CacheKey() string {
	return fmt.Sprintf("%s-%d", d.ID, d.Version)
}

// Session is the live working state for a document: the persisted record plus
// the cached variable set and degradation status from the latest extraction.
type Session struct {
	Document
	Variables      []extraction.Variable `json:"variables"`
	Degraded       bool                  `json:"degraded"`
	DegradedReason string                `json:"degraded_reason,omitempty"`

	workPath string
	injected map[string]struct{}
}

// WorkPath returns the session's local working copy path.
func (s *Session) WorkPath() string {
	return s.workPath
}

// CreateCommand carries the data needed to upload and register a new session.
// Data holds the raw .docx bytes.
type CreateCommand struct {
	Data        []byte
	Filename    string
	ContentType string
}

// ReplaceResult reports the outcome of a replacement cycle: the new session
// state, how many token occurrences were rewritten, and any requested keys
// that no longer matched a variable.
type ReplaceResult struct {
	Session  *Session `json:"session"`
	Replaced int      `json:"replaced"`
	Skipped  []string `json:"skipped_keys,omitempty"`
}
