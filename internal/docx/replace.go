package docx

import (
	"sort"
	"strings"
)

// span marks one token occurrence inside a paragraph's concatenated text.
type span struct {
	start int
	end   int
	value string
}

// ReplaceAll replaces every occurrence of each raw token with its value in
// every paragraph of the document body, including paragraphs inside table
// cells. The replacement value lands in the text run holding the first
// character of the token, so that run's formatting carries over; runs holding
// the remainder of a straddled token are emptied rather than left with a
// token fragment. Values are inserted as literal, XML-escaped text.
// Returns the number of occurrences replaced.
func (d *Document) ReplaceAll(values map[string]string) int {
	if len(values) == 0 {
		return 0
	}

	// Longest token first so a token that textually contains another
	// claims the span deterministically.
	tokens := make([]string, 0, len(values))
	for raw := range values {
		if raw != "" {
			tokens = append(tokens, raw)
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})

	total := 0
	d.body = paragraphRegex.ReplaceAllStringFunc(d.body, func(para string) string {
		rewritten, n := replaceInParagraph(para, tokens, values)
		total += n
		return rewritten
	})

	return total
}

func replaceInParagraph(para string, tokens []string, values map[string]string) (string, int) {
	nodes, text := collectTextNodes(para)
	if len(nodes) == 0 {
		return para, 0
	}

	matches := findSpans(text, tokens, values)
	if len(matches) == 0 {
		return para, 0
	}

	rewriteTextNodes(nodes, text, matches)
	return spliceNodes(para, nodes), len(matches)
}

// collectTextNodes gathers every <w:t> element in the paragraph along with
// the paragraph's concatenated plain text.
func collectTextNodes(para string) ([]*textNode, string) {
	var (
		nodes []*textNode
		sb    strings.Builder
	)

	for _, idx := range textElemRegex.FindAllStringSubmatchIndex(para, -1) {
		node := &textNode{elemStart: idx[0], elemEnd: idx[1]}
		if idx[2] >= 0 {
			node.text = unescape(para[idx[2]:idx[3]])
		}
		nodes = append(nodes, node)
		sb.WriteString(node.text)
	}

	return nodes, sb.String()
}

// findSpans locates every non-overlapping token occurrence in the paragraph
// text, scanning tokens in the given priority order.
func findSpans(text string, tokens []string, values map[string]string) []span {
	var matches []span

	claimed := make([]bool, len(text))
	free := func(s, e int) bool {
		for i := s; i < e; i++ {
			if claimed[i] {
				return false
			}
		}
		return true
	}

	for _, token := range tokens {
		from := 0
		for {
			i := strings.Index(text[from:], token)
			if i < 0 {
				break
			}
			s := from + i
			e := s + len(token)
			if free(s, e) {
				for j := s; j < e; j++ {
					claimed[j] = true
				}
				matches = append(matches, span{start: s, end: e, value: values[token]})
			}
			from = e
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })
	return matches
}

// rewriteTextNodes rebuilds each node's text in a single forward pass:
// characters outside any match copy through, the first character of a match
// emits the replacement value, and the remaining covered characters emit
// nothing.
func rewriteTextNodes(nodes []*textNode, text string, matches []span) {
	covering := make([]*span, len(text))
	for i := range matches {
		for j := matches[i].start; j < matches[i].end; j++ {
			covering[j] = &matches[i]
		}
	}

	offset := 0
	for _, node := range nodes {
		var sb strings.Builder
		for i := offset; i < offset+len(node.text); i++ {
			m := covering[i]
			switch {
			case m == nil:
				sb.WriteByte(text[i])
			case i == m.start:
				sb.WriteString(m.value)
			}
		}
		offset += len(node.text)
		node.text = sb.String()
	}
}

// spliceNodes reassembles the paragraph XML with each text node's element
// rewritten in place. Non-empty nodes carry xml:space="preserve" so
// boundary whitespace in inserted values survives.
func spliceNodes(para string, nodes []*textNode) string {
	var sb strings.Builder

	pos := 0
	for _, node := range nodes {
		sb.WriteString(para[pos:node.elemStart])
		if node.text == "" {
			sb.WriteString(`<w:t/>`)
		} else {
			sb.WriteString(`<w:t xml:space="preserve">`)
			sb.WriteString(escape(node.text))
			sb.WriteString(`</w:t>`)
		}
		pos = node.elemEnd
	}
	sb.WriteString(para[pos:])

	return sb.String()
}
