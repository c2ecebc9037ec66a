package editor_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/scrivenerhq/scrivener/internal/editor"
	"github.com/scrivenerhq/scrivener/internal/sessions"
	"github.com/scrivenerhq/scrivener/pkg/pagination"
	"github.com/scrivenerhq/scrivener/pkg/routes"
)

type fakeSessions struct {
	saved []byte
}

func (f *fakeSessions) Handler(int64) *sessions.Handler { return nil }

func (f *fakeSessions) List(
	context.Context,
	pagination.PageRequest,
	sessions.Filters,
) (*pagination.PageResult[sessions.Document], error) {
	return nil, sessions.ErrNotFound
}

func (f *fakeSessions) Create(context.Context, sessions.CreateCommand) (*sessions.Session, error) {
	return nil, sessions.ErrNotFound
}

func (f *fakeSessions) Get(context.Context, uuid.UUID) (*sessions.Session, error) {
	return nil, sessions.ErrNotFound
}

func (f *fakeSessions) Extract(context.Context, uuid.UUID) (*sessions.Session, error) {
	return nil, sessions.ErrNotFound
}

func (f *fakeSessions) Replace(
	context.Context,
	uuid.UUID,
	map[string]string,
) (*sessions.ReplaceResult, error) {
	return nil, sessions.ErrNotFound
}

func (f *fakeSessions) SaveEdited(_ context.Context, id uuid.UUID, data []byte) (*sessions.Session, error) {
	f.saved = data
	return &sessions.Session{Document: sessions.Document{ID: id, Version: 2}}, nil
}

func (f *fakeSessions) Snapshot(context.Context, uuid.UUID) (string, error) {
	return "", sessions.ErrNotFound
}

func (f *fakeSessions) Delete(context.Context, uuid.UUID) error { return nil }

func newSaveServer(t *testing.T, maxUpload int64) (*fakeSessions, *httptest.Server) {
	t.Helper()

	fake := &fakeSessions{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mux := http.NewServeMux()
	routes.Register(mux, editor.NewHandler(fake, logger, "/api", maxUpload).Routes())

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return fake, srv
}

func saveURL(srv *httptest.Server, id uuid.UUID) string {
	return srv.URL + "/sessions/" + id.String() + "/editor/save"
}

func TestSaveRawBody(t *testing.T) {
	fake, srv := newSaveServer(t, 1<<20)

	resp, err := http.Post(saveURL(srv, uuid.New()), "application/octet-stream",
		strings.NewReader("docx bytes"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if string(fake.saved) != "docx bytes" {
		t.Errorf("saved payload: got %q", fake.saved)
	}
}

func TestSaveOversizedBody(t *testing.T) {
	_, srv := newSaveServer(t, 8)

	resp, err := http.Post(saveURL(srv, uuid.New()), "application/octet-stream",
		strings.NewReader(strings.Repeat("a", 64)))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status: got %d, want %d", resp.StatusCode, http.StatusRequestEntityTooLarge)
	}
}

func TestSaveMalformedMultipart(t *testing.T) {
	_, srv := newSaveServer(t, 1<<20)

	resp, err := http.Post(saveURL(srv, uuid.New()), "multipart/form-data; boundary=xyz",
		strings.NewReader("not a multipart body"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestSaveMissingFileField(t *testing.T) {
	_, srv := newSaveServer(t, 1<<20)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormField("other")
	if err != nil {
		t.Fatalf("create form field: %v", err)
	}
	fw.Write([]byte("x"))
	mw.Close()

	resp, err := http.Post(saveURL(srv, uuid.New()), mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
