package sessions

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scrivenerhq/scrivener/internal/docx"
	"github.com/scrivenerhq/scrivener/internal/extraction"
	"github.com/scrivenerhq/scrivener/internal/workflow"
	"github.com/scrivenerhq/scrivener/pkg/lifecycle"
	"github.com/scrivenerhq/scrivener/pkg/storage"
)

func docxArchive(t *testing.T, body string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	ct, err := zw.Create("[Content_Types].xml")
	if err != nil {
		t.Fatalf("create content types: %v", err)
	}
	ct.Write([]byte(`<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`))

	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create document part: %v", err)
	}
	w.Write([]byte(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))

	if err := zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return buf.Bytes()
}

// failingStorage rejects every upload so commit paths can be driven to failure.
type failingStorage struct{}

func (failingStorage) Start(*lifecycle.Coordinator) error { return nil }

func (failingStorage) Upload(context.Context, string, io.Reader, string) error {
	return errors.New("blob service unavailable")
}

func (failingStorage) Download(context.Context, string) (*storage.DownloadResult, error) {
	return nil, storage.ErrNotFound
}

func (failingStorage) Delete(context.Context, string) error { return nil }

func (failingStorage) Exists(context.Context, string) (bool, error) { return false, nil }

func TestStoreAcquire(t *testing.T) {
	s := newStore(10 * time.Millisecond)
	id := uuid.New()

	release, err := s.acquire(context.Background(), id)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	// The slot is held, so a second acquire times out with ErrBusy.
	if _, err := s.acquire(context.Background(), id); err != ErrBusy {
		t.Errorf("held slot: got %v, want ErrBusy", err)
	}

	// A different document is unaffected.
	otherRelease, err := s.acquire(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("acquire on distinct document failed: %v", err)
	}
	otherRelease()

	release()
	release, err = s.acquire(context.Background(), id)
	if err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
	release()
}

func TestStoreAcquireContextCanceled(t *testing.T) {
	s := newStore(time.Minute)
	id := uuid.New()

	release, err := s.acquire(context.Background(), id)
	if err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.acquire(ctx, id); err != context.Canceled {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestStorePutGetRemove(t *testing.T) {
	s := newStore(time.Second)
	id := uuid.New()

	if _, ok := s.get(id); ok {
		t.Fatal("empty store returned a session")
	}

	sess := &Session{Document: Document{ID: id, Version: 1}}
	s.put(sess)

	got, ok := s.get(id)
	if !ok || got != sess {
		t.Fatal("stored session not returned")
	}

	s.remove(id)
	if _, ok := s.get(id); ok {
		t.Error("removed session still present")
	}
}

func TestDocumentCacheKey(t *testing.T) {
	id := uuid.MustParse("7f9c24e5-2f3a-4b1d-9e6a-1c8b5d4f3a21")
	d := Document{ID: id, Version: 3}

	want := "7f9c24e5-2f3a-4b1d-9e6a-1c8b5d4f3a21-3"
	if got := d.CacheKey(); got != want {
		t.Errorf("cache key: got %q, want %q", got, want)
	}
}

func TestBuildSession(t *testing.T) {
	record := Document{ID: uuid.New(), Version: 2}

	result := &workflow.ExtractionResult{
		Variables: []extraction.Variable{
			{Key: "candidate_name", RawToken: "[Candidate Name]", Occurrences: 1},
			{Key: "jane_doe", RawToken: "[Jane Doe]", Occurrences: 1},
			{Key: "salary", RawToken: "[Salary]", Occurrences: 2},
		},
		Degraded:       true,
		DegradedReason: "model offline",
	}

	injected := map[string]struct{}{"jane_doe": {}}
	current := map[string]string{"salary": "$120,000"}

	sess := buildSession(record, result, injected, current, "/tmp/work.docx")

	// Keys introduced by replacement values are suppressed from the set.
	if len(sess.Variables) != 2 {
		t.Fatalf("variable count: got %d, want 2", len(sess.Variables))
	}
	for _, v := range sess.Variables {
		if v.Key == "jane_doe" {
			t.Error("injected key not suppressed")
		}
	}

	if got := sess.Variables[1].CurrentValue; got != "$120,000" {
		t.Errorf("current value: got %q, want carried forward", got)
	}
	if sess.Variables[0].CurrentValue != "" {
		t.Errorf("unexpected current value: %q", sess.Variables[0].CurrentValue)
	}

	if !sess.Degraded || sess.DegradedReason != "model offline" {
		t.Errorf("degradation not carried: %v %q", sess.Degraded, sess.DegradedReason)
	}
	if got := sess.InjectedKeys; len(got) != 1 || got[0] != "jane_doe" {
		t.Errorf("injected keys: got %v, want [jane_doe]", got)
	}
	if sess.WorkPath() != "/tmp/work.docx" {
		t.Errorf("work path: got %q", sess.WorkPath())
	}
}

func TestCurrentValuesAndOverlay(t *testing.T) {
	variables := []extraction.Variable{
		{Key: "candidate_name", CurrentValue: "Jane Doe"},
		{Key: "salary"},
	}

	current := currentValues(variables)
	if len(current) != 1 || current["candidate_name"] != "Jane Doe" {
		t.Errorf("current values: got %v", current)
	}

	merged := overlay(current, map[string]string{"salary": "$120,000", "candidate_name": "Janet Doe"})
	if merged["salary"] != "$120,000" {
		t.Errorf("new value not applied: %v", merged)
	}
	if merged["candidate_name"] != "Janet Doe" {
		t.Errorf("update did not win: %v", merged)
	}
}

func TestInjectedKeyHelpers(t *testing.T) {
	set := toSet([]string{"b", "a", "b"})
	if len(set) != 2 {
		t.Fatalf("set size: got %d, want 2", len(set))
	}

	list := toList(set)
	if len(list) != 2 || list[0] != "a" || list[1] != "b" {
		t.Errorf("list: got %v, want sorted [a b]", list)
	}

	cloned := cloneSet(set)
	cloned["c"] = struct{}{}
	if _, ok := set["c"]; ok {
		t.Error("clone shares storage with original")
	}

	data, err := marshalInjected(set)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `["a","b"]` {
		t.Errorf("marshaled: got %s", data)
	}

	empty, err := marshalInjected(nil)
	if err != nil {
		t.Fatalf("marshal nil failed: %v", err)
	}
	if string(empty) != "[]" {
		t.Errorf("marshaled nil: got %s, want []", empty)
	}
}

func TestRevisionKey(t *testing.T) {
	id := uuid.MustParse("7f9c24e5-2f3a-4b1d-9e6a-1c8b5d4f3a21")

	want := "sessions/7f9c24e5-2f3a-4b1d-9e6a-1c8b5d4f3a21/v2/offer.docx"
	if got := revisionKey(id, 2, "offer.docx"); got != want {
		t.Errorf("revision key: got %q, want %q", got, want)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "offer.docx", want: "offer.docx"},
		{name: "path stripped", in: "../../etc/offer.docx", want: "offer.docx"},
		{name: "spaces escaped", in: "offer letter.docx", want: "offer%20letter.docx"},
		{name: "empty falls back", in: "", want: "document.docx"},
		{name: "dot falls back", in: ".", want: "document.docx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeFilename(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlanReplacement(t *testing.T) {
	sess := &Session{
		Variables: []extraction.Variable{
			{
				Key:      "candidate_name",
				RawToken: "[Candidate Name]",
				RawForms: []string{"[Candidate Name]", "<<candidate name>>"},
			},
			{
				Key:      "salary",
				RawToken: "[Salary]",
				RawForms: []string{"[Salary]"},
			},
		},
		injected: map[string]struct{}{"prior_key": {}},
	}

	plan := planReplacement(sess, map[string]string{
		"Candidate Name": "Jane Doe",
		"salary":         "see [Salary] schedule, ref [Internal Ref]",
		"unknown key":    "x",
	})

	// Every raw form of a matched key rewrites to its value.
	if got := plan.rawValues["[Candidate Name]"]; got != "Jane Doe" {
		t.Errorf("square form: got %q, want Jane Doe", got)
	}
	if got := plan.rawValues["<<candidate name>>"]; got != "Jane Doe" {
		t.Errorf("angle form: got %q, want Jane Doe", got)
	}
	if len(plan.rawValues) != 3 {
		t.Errorf("raw values: got %v, want 3 entries", plan.rawValues)
	}

	if len(plan.replaced) != 2 || plan.replaced["candidate_name"] != "Jane Doe" {
		t.Errorf("replaced: got %v", plan.replaced)
	}

	if len(plan.skipped) != 1 || plan.skipped[0] != "unknown_key" {
		t.Errorf("skipped: got %v, want [unknown_key]", plan.skipped)
	}

	// A token form inside a value records its key as injected unless the key
	// is already a variable; the session's base set is extended, not mutated.
	if _, ok := plan.injected["internal_ref"]; !ok {
		t.Error("literal token in value not recorded as injected")
	}
	if _, ok := plan.injected["salary"]; ok {
		t.Error("existing variable key recorded as injected")
	}
	if _, ok := plan.injected["prior_key"]; !ok {
		t.Error("base injected set not carried forward")
	}
	if len(sess.injected) != 1 {
		t.Errorf("session injected set mutated: %v", sess.injected)
	}
}

func TestPlanReplacementRawTokenFallback(t *testing.T) {
	sess := &Session{
		Variables: []extraction.Variable{{Key: "title", RawToken: "{title}"}},
		injected:  map[string]struct{}{},
	}

	plan := planReplacement(sess, map[string]string{"title": "Engineer"})
	if got := plan.rawValues["{title}"]; got != "Engineer" {
		t.Errorf("fallback raw token: got %q, want Engineer", got)
	}
}

func TestReplacePlanRewritesEveryRawForm(t *testing.T) {
	body := "<w:p><w:r><w:t>Dear [Candidate Name], an offer for &lt;&lt;candidate name&gt;&gt; is attached.</w:t></w:r></w:p>"

	doc, err := docx.Load(docxArchive(t, body))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	variables := extraction.Merge(extraction.Tokens(doc.Text()), nil)
	if len(variables) != 1 || variables[0].Occurrences != 2 {
		t.Fatalf("merge: got %+v, want one variable with 2 occurrences", variables)
	}

	sess := &Session{Variables: variables, injected: map[string]struct{}{}}
	plan := planReplacement(sess, map[string]string{"candidate_name": "Jane Doe"})

	if n := doc.ReplaceAll(plan.rawValues); n != 2 {
		t.Errorf("replaced: got %d, want 2", n)
	}

	for _, tok := range extraction.Tokens(doc.Text()) {
		if tok.Key == "candidate_name" {
			t.Errorf("occurrence %q survived replacement", tok.Raw)
		}
	}
}

func TestReplaceKeepsWorkingCopyOnCommitFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "work.docx")

	data := docxArchive(t, "<w:p><w:r><w:t>Dear [Candidate Name], welcome.</w:t></w:r></w:p>")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write working copy: %v", err)
	}

	r := &repo{
		storage: failingStorage{},
		store:   newStore(time.Second),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		workDir: dir,
	}

	id := uuid.New()
	r.store.put(&Session{
		Document: Document{ID: id, Filename: "work.docx", Version: 1},
		Variables: []extraction.Variable{
			{
				Key:         "candidate_name",
				RawToken:    "[Candidate Name]",
				RawForms:    []string{"[Candidate Name]"},
				Occurrences: 1,
			},
		},
		workPath: path,
		injected: map[string]struct{}{},
	})

	_, err := r.Replace(context.Background(), id, map[string]string{"candidate_name": "Jane"})
	if err == nil {
		t.Fatal("expected replace to fail when the revision upload fails")
	}

	doc, err := docx.Open(path)
	if err != nil {
		t.Fatalf("reopen working copy: %v", err)
	}
	if got := doc.Text(); !strings.Contains(got, "[Candidate Name]") {
		t.Errorf("working copy advanced past failed commit: %q", got)
	}

	if _, err := os.Stat(path + ".staging"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("staging file left behind: %v", err)
	}

	cached, ok := r.store.get(id)
	if !ok || cached.Version != 1 {
		t.Errorf("cached session moved past failed commit: %+v", cached)
	}
}

func TestConcurrentMutationsSerializePerDocument(t *testing.T) {
	s := newStore(time.Second)
	id := uuid.New()
	s.put(&Session{Document: Document{ID: id, Version: 1}})

	updates := []struct{ key, value string }{
		{key: "candidate_name", value: "Jane Doe"},
		{key: "salary", value: "$120,000"},
	}

	var wg sync.WaitGroup
	for _, u := range updates {
		wg.Add(1)
		go func() {
			defer wg.Done()

			release, err := s.acquire(context.Background(), id)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			defer release()

			cached, ok := s.get(id)
			if !ok {
				t.Error("cached session missing")
				return
			}

			next := &Session{Document: cached.Document}
			next.Version = cached.Version + 1
			next.Variables = append(next.Variables, cached.Variables...)
			next.Variables = append(next.Variables, extraction.Variable{
				Key:          u.key,
				CurrentValue: u.value,
			})
			s.put(next)
		}()
	}
	wg.Wait()

	final, ok := s.get(id)
	if !ok {
		t.Fatal("session missing after concurrent cycles")
	}
	if final.Version != 3 {
		t.Errorf("version: got %d, want 3", final.Version)
	}
	if len(final.Variables) != 2 {
		t.Errorf("disjoint updates lost: %+v", final.Variables)
	}
}
