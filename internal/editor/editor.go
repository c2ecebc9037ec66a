// Package editor exposes the live editor integration surface: configuration
// for loading a session's current revision into an external document editor,
// and the save callback that folds edited content back into the session.
package editor

import (
	"fmt"

	"github.com/scrivenerhq/scrivener/internal/sessions"
)

// Config is the payload an editor client needs to load a session document.
// DocumentRef points at the current revision download endpoint. CacheKey
// changes with every version bump so the editor discards stale cached copies
// instead of reopening them.
type Config struct {
	DocumentRef string `json:"document_ref"`
	CacheKey    string `json:"cache_key"`
	Filename    string `json:"filename"`
	Version     int    `json:"version"`
	SaveRef     string `json:"save_ref"`
}

// BuildConfig derives the editor configuration for a session's current
// revision. basePath is the mounted API prefix.
func BuildConfig(sess *sessions.Session, basePath string) Config {
	return Config{
		DocumentRef: fmt.Sprintf("%s/storage/download/%s", basePath, sess.StorageKey),
		CacheKey:    sess.CacheKey(),
		Filename:    sess.Filename,
		Version:     sess.Version,
		SaveRef:     fmt.Sprintf("%s/sessions/%s/editor/save", basePath, sess.ID),
	}
}
