// Package extraction implements placeholder token detection and the merge of
// pattern matches with entity annotations into the canonical variable set for
// a document session.
package extraction

import (
	"regexp"
	"sort"
	"strings"
)

// Token is one placeholder occurrence: the exact delimited text as it appears
// in the document, its inner body, and the normalized key derived from it.
type Token struct {
	Raw  string
	Body string
	Key  string
}

// grammar is one supported delimiter style. Grammars are evaluated in fixed
// priority order; spans claimed by an earlier grammar are invisible to later
// ones, which keeps mixed-delimiter documents deterministic.
type grammar struct {
	name    string
	pattern *regexp.Regexp
}

var grammars = []grammar{
	{name: "double-angle", pattern: regexp.MustCompile(`<<([^<>\n]+)>>`)},
	{name: "square", pattern: regexp.MustCompile(`\[([^\[\]\n]+)\]`)},
	{name: "curly", pattern: regexp.MustCompile(`\{([^{}\n]+)\}`)},
}

// Tokens scans text for placeholder tokens across all supported delimiter
// grammars. A document may mix grammars freely. Empty and whitespace-only
// bodies are rejected. Tokens never fails: malformed or empty input yields
// an empty slice, and the caller decides whether zero tokens is meaningful.
func Tokens(text string) []Token {
	if text == "" {
		return nil
	}

	var tokens []Token

	claimed := make([]bool, len(text))
	free := func(s, e int) bool {
		for i := s; i < e; i++ {
			if claimed[i] {
				return false
			}
		}
		return true
	}

	type located struct {
		pos   int
		token Token
	}
	var found []located

	for _, g := range grammars {
		for _, idx := range g.pattern.FindAllStringSubmatchIndex(text, -1) {
			s, e := idx[0], idx[1]
			body := text[idx[2]:idx[3]]

			if strings.TrimSpace(body) == "" {
				continue
			}
			if !free(s, e) {
				continue
			}

			for i := s; i < e; i++ {
				claimed[i] = true
			}
			found = append(found, located{
				pos: s,
				token: Token{
					Raw:  text[s:e],
					Body: body,
					Key:  NormalizeKey(body),
				},
			})
		}
	}

	// document order, independent of grammar priority
	sort.Slice(found, func(i, j int) bool { return found[i].pos < found[j].pos })

	for _, l := range found {
		tokens = append(tokens, l.token)
	}
	return tokens
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeKey derives the canonical variable key from a token body:
// case-folded, trimmed, internal whitespace collapsed to single underscores.
func NormalizeKey(body string) string {
	key := strings.ToLower(strings.TrimSpace(body))
	return whitespaceRegex.ReplaceAllString(key, "_")
}
