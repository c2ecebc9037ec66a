// Package docx reads and rewrites WordprocessingML (.docx) documents at the
// text-run level. It exposes a plain-text snapshot of the body and a
// structure-preserving token replacement that keeps run formatting intact,
// covering both paragraphs and table cells (table cells contain paragraphs).
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const bodyPart = "word/document.xml"

// Document is a parsed .docx archive. All parts except the main body are
// carried through untouched so a rewrite never disturbs styles, numbering,
// or relationships.
type Document struct {
	parts []part
	body  string
}

type part struct {
	name string
	data []byte
}

// textNode is one <w:t> element in the body: the span of the full element in
// the body string and its unescaped text content.
type textNode struct {
	elemStart int
	elemEnd   int
	text      string
}

var (
	paragraphRegex = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	textElemRegex  = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>|<w:t(?:\s[^>]*)?/>`)
)

// Open reads and parses the .docx file at path.
// Returns ErrCorrupt for anything that is not a well-formed docx archive.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return Load(data)
}

// Load parses a .docx archive from raw bytes.
func Load(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	doc := &Document{parts: make([]part, 0, len(zr.File))}
	found := false

	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open part %s: %w", ErrCorrupt, f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read part %s: %w", ErrCorrupt, f.Name, err)
		}

		if f.Name == bodyPart {
			doc.body = string(content)
			found = true
		}
		doc.parts = append(doc.parts, part{name: f.Name, data: content})
	}

	if !found || !strings.Contains(doc.body, "<w:body") {
		return nil, fmt.Errorf("%w: missing %s", ErrCorrupt, bodyPart)
	}

	return doc, nil
}

// Text returns a plain-text snapshot of the document body: the concatenated
// contents of every text run, with one newline per paragraph. Tabs render as
// a tab character. The snapshot is what extraction and compliance analysis
// operate on.
func (d *Document) Text() string {
	var sb strings.Builder

	scan := regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>|<w:tab\s*/>|</w:p>`)
	for _, m := range scan.FindAllStringSubmatch(d.body, -1) {
		switch {
		case strings.HasPrefix(m[0], "<w:tab"):
			sb.WriteString("\t")
		case strings.HasPrefix(m[0], "<w:t"):
			sb.WriteString(unescape(m[1]))
		default:
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// Bytes serializes the document back into a .docx archive.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, p := range d.parts {
		data := p.data
		if p.name == bodyPart {
			data = []byte(d.body)
		}

		w, err := zw.Create(p.name)
		if err != nil {
			return nil, fmt.Errorf("create part %s: %w", p.name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("write part %s: %w", p.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}

	return buf.Bytes(), nil
}

// Save writes the document to path atomically: the archive is written to a
// temp file in the target directory and renamed into place only on full
// success, so a failed write never leaves a partial document behind.
func (d *Document) Save(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".docx-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("swap document: %w", err)
	}

	return nil
}

func unescape(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	r := strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
		"&amp;", "&",
	)
	return r.Replace(s)
}

func escape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return r.Replace(s)
}
