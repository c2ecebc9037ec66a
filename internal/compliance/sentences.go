package compliance

import "strings"

// SplitSentences segments document text into sentences for rule evaluation.
// Terminators are '.', '!', and '?'; paragraph breaks also terminate a
// sentence so headings and list items without punctuation still get
// evaluated. Empty segments are dropped.
func SplitSentences(text string) []string {
	var (
		sentences []string
		sb        strings.Builder
	)

	flush := func() {
		if s := strings.TrimSpace(sb.String()); s != "" {
			sentences = append(sentences, s)
		}
		sb.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		switch r {
		case '.', '!', '?':
			sb.WriteRune(r)
			if i+1 == len(runes) || isBoundary(runes[i+1]) {
				flush()
			}
		case '\n':
			flush()
		default:
			sb.WriteRune(r)
		}
	}
	flush()

	return sentences
}

func isBoundary(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '"', '\'', ')', ']':
		return true
	}
	return false
}
