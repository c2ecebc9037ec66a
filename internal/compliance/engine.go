package compliance

import (
	"context"
	"regexp"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

// compiled pairs a rule with its prepared matcher.
type compiled struct {
	rule    Rule
	phrase  string
	pattern *regexp.Regexp
}

// Evaluate runs the active rule set against document text. Sentences are
// evaluated concurrently; findings come back ordered by sentence position
// and then by rule order. A rule matches a sentence at most once. Rules with
// uncompilable patterns were rejected at registration, so compile errors
// here mean stored data drifted and the rule is skipped.
func Evaluate(ctx context.Context, text string, rules []Rule) ([]Finding, error) {
	sentences := SplitSentences(text)
	if len(sentences) == 0 || len(rules) == 0 {
		return nil, nil
	}

	matchers := make([]compiled, 0, len(rules))
	for _, rule := range rules {
		m := compiled{rule: rule}
		switch rule.Kind {
		case KindPhrase:
			m.phrase = strings.ToLower(rule.Pattern)
		case KindRegex:
			pattern, err := regexp.Compile(rule.Pattern)
			if err != nil {
				continue
			}
			m.pattern = pattern
		default:
			continue
		}
		matchers = append(matchers, m)
	}

	results := make([][]Finding, len(sentences))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(min(runtime.NumCPU(), len(sentences)), 1))

	for i, sentence := range sentences {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = evaluateSentence(sentence, i, matchers)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var findings []Finding
	for _, fs := range results {
		findings = append(findings, fs...)
	}
	return findings, nil
}

func evaluateSentence(sentence string, index int, matchers []compiled) []Finding {
	var findings []Finding

	lower := strings.ToLower(sentence)
	for _, m := range matchers {
		match := ""
		switch {
		case m.pattern != nil:
			match = m.pattern.FindString(sentence)
			if match == "" {
				continue
			}
		default:
			at := strings.Index(lower, m.phrase)
			if at < 0 {
				continue
			}
			match = sentence[at : at+len(m.phrase)]
		}

		findings = append(findings, Finding{
			RuleID:               m.rule.ID,
			Jurisdiction:         m.rule.Jurisdiction,
			Severity:             m.rule.Severity,
			SuggestedAlternative: m.rule.SuggestedAlternative,
			SourceText:           sentence,
			SentenceIndex:        index,
			Match:                match,
		})
	}

	return findings
}
