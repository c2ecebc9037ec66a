package workflow_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/scrivenerhq/scrivener/internal/extraction"
	"github.com/scrivenerhq/scrivener/internal/nlp"
	"github.com/scrivenerhq/scrivener/internal/workflow"
)

// stubRecognizer returns a canned result and records the tokens it was asked
// to classify.
type stubRecognizer struct {
	result nlp.Result
	tokens []extraction.Token
	calls  int
}

func (s *stubRecognizer) Recognize(_ context.Context, _ string, tokens []extraction.Token) nlp.Result {
	s.calls++
	s.tokens = tokens
	return s.result
}

func writeDocx(t *testing.T, body string) string {
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
	w.Write([]byte(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + body + `</w:t></w:r></w:p></w:body></w:document>`))

	if err := zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}

	path := filepath.Join(t.TempDir(), "offer.docx")
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func newRuntime(recognizer nlp.Recognizer) *workflow.Runtime {
	return &workflow.Runtime{
		Recognizer: recognizer,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestExecuteWithClassification(t *testing.T) {
	path := writeDocx(t, "Dear [Candidate Name], your salary is [Salary].")

	stub := &stubRecognizer{
		result: nlp.Result{
			Available: true,
			Entities: []nlp.Entity{
				{Key: "candidate_name", Category: nlp.CategoryPerson, Confidence: 0.9},
			},
		},
	}

	result, err := workflow.Execute(context.Background(), newRuntime(stub), path)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if stub.calls != 1 {
		t.Errorf("recognizer calls: got %d, want 1", stub.calls)
	}
	if len(stub.tokens) != 2 {
		t.Errorf("tokens passed to recognizer: got %d, want 2", len(stub.tokens))
	}

	if result.TokenCount != 2 {
		t.Errorf("token count: got %d, want 2", result.TokenCount)
	}
	if result.Degraded {
		t.Errorf("degraded: %s", result.DegradedReason)
	}
	if len(result.Variables) != 2 {
		t.Fatalf("variable count: got %d, want 2", len(result.Variables))
	}

	name := result.Variables[0]
	if name.Key != "candidate_name" {
		t.Errorf("first key: got %q, want candidate_name", name.Key)
	}
	if name.Category == nil || *name.Category != nlp.CategoryPerson {
		t.Errorf("category: got %v, want PERSON", name.Category)
	}
	if result.Variables[1].Category != nil {
		t.Error("unclassified variable carries a category")
	}
}

func TestExecuteDegradedRecognizer(t *testing.T) {
	path := writeDocx(t, "Dear [name],")

	stub := &stubRecognizer{result: nlp.Unavailable("model offline")}

	result, err := workflow.Execute(context.Background(), newRuntime(stub), path)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if !result.Degraded {
		t.Fatal("expected degraded result")
	}
	if result.DegradedReason != "model offline" {
		t.Errorf("reason: got %q", result.DegradedReason)
	}
	if len(result.Variables) != 1 {
		t.Fatalf("variable count: got %d, want 1", len(result.Variables))
	}
	if result.Variables[0].Category != nil {
		t.Error("degraded run still produced classification")
	}
}

func TestExecuteNoTokensSkipsClassify(t *testing.T) {
	path := writeDocx(t, "No placeholders in this letter.")

	stub := &stubRecognizer{result: nlp.Result{Available: true}}

	result, err := workflow.Execute(context.Background(), newRuntime(stub), path)
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if stub.calls != 0 {
		t.Errorf("recognizer calls: got %d, want 0", stub.calls)
	}
	if result.TokenCount != 0 || len(result.Variables) != 0 {
		t.Errorf("got %d tokens, %d variables, want none", result.TokenCount, len(result.Variables))
	}
	if result.Degraded {
		t.Error("empty document reported as degraded")
	}
}

func TestExecuteCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.docx")
	if err := os.WriteFile(path, []byte("not a docx"), 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	stub := &stubRecognizer{result: nlp.Result{Available: true}}

	_, err := workflow.Execute(context.Background(), newRuntime(stub), path)
	if err == nil {
		t.Fatal("expected failure for corrupt document")
	}
	if stub.calls != 0 {
		t.Errorf("recognizer calls: got %d, want 0", stub.calls)
	}
}
