package editor_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/scrivenerhq/scrivener/internal/editor"
	"github.com/scrivenerhq/scrivener/internal/sessions"
)

func TestBuildConfig(t *testing.T) {
	id := uuid.MustParse("7f9c24e5-2f3a-4b1d-9e6a-1c8b5d4f3a21")

	sess := &sessions.Session{
		Document: sessions.Document{
			ID:         id,
			Filename:   "offer.docx",
			StorageKey: "sessions/7f9c24e5-2f3a-4b1d-9e6a-1c8b5d4f3a21/v3/offer.docx",
			Version:    3,
		},
	}

	cfg := editor.BuildConfig(sess, "/api")

	wantRef := "/api/storage/download/sessions/7f9c24e5-2f3a-4b1d-9e6a-1c8b5d4f3a21/v3/offer.docx"
	if cfg.DocumentRef != wantRef {
		t.Errorf("document ref: got %q, want %q", cfg.DocumentRef, wantRef)
	}

	wantSave := "/api/sessions/7f9c24e5-2f3a-4b1d-9e6a-1c8b5d4f3a21/editor/save"
	if cfg.SaveRef != wantSave {
		t.Errorf("save ref: got %q, want %q", cfg.SaveRef, wantSave)
	}

	if cfg.CacheKey != "7f9c24e5-2f3a-4b1d-9e6a-1c8b5d4f3a21-3" {
		t.Errorf("cache key: got %q", cfg.CacheKey)
	}
	if cfg.Filename != "offer.docx" || cfg.Version != 3 {
		t.Errorf("metadata: got %q v%d", cfg.Filename, cfg.Version)
	}
}

func TestBuildConfigCacheKeyTracksVersion(t *testing.T) {
	sess := &sessions.Session{
		Document: sessions.Document{ID: uuid.New(), Version: 1},
	}

	first := editor.BuildConfig(sess, "/api").CacheKey

	sess.Version = 2
	second := editor.BuildConfig(sess, "/api").CacheKey

	if first == second {
		t.Errorf("cache key did not change across versions: %q", first)
	}
}
