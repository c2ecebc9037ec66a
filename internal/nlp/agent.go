package nlp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/scrivenerhq/scrivener/internal/extraction"
	"github.com/scrivenerhq/scrivener/pkg/formatting"
)

// excerpt limit keeps the prompt bounded for long documents; tokens carry
// their own bodies so truncation only costs surrounding context.
const maxExcerptLen = 4000

type entityResponse struct {
	Entities []Entity `json:"entities"`
}

type recognizer struct {
	agent  gaconfig.AgentConfig
	opts   Options
	logger *slog.Logger
}

// New creates an agent-backed Recognizer. Each recognition run constructs a
// fresh agent from the stored configuration, mirroring how classification
// agents are built per-task elsewhere in the stack.
func New(agentCfg gaconfig.AgentConfig, opts Options, logger *slog.Logger) Recognizer {
	return &recognizer{
		agent:  agentCfg,
		opts:   opts,
		logger: logger.With("system", "nlp"),
	}
}

func (r *recognizer) Recognize(ctx context.Context, text string, tokens []extraction.Token) Result {
	if !r.opts.Enabled {
		return Unavailable("entity classifier disabled")
	}
	if len(tokens) == 0 {
		return Result{Available: true}
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	a, err := agent.New(&r.agent)
	if err != nil {
		r.logger.Warn("agent construction failed, degrading", "error", err)
		return Unavailable("entity classifier unavailable")
	}

	resp, err := a.Chat(ctx, composePrompt(text, tokens))
	if err != nil {
		r.logger.Warn("entity recognition call failed, degrading", "error", err)
		return Unavailable("entity classifier unavailable")
	}

	parsed, err := formatting.Parse[entityResponse](resp.Content())
	if err != nil {
		r.logger.Warn("entity response unparsable, degrading", "error", err)
		return Unavailable("entity classifier returned malformed output")
	}

	return Result{
		Available: true,
		Entities:  filter(parsed.Entities, tokens, r.opts.ConfidenceThreshold),
	}
}

// filter discards entities below the confidence threshold, entities for keys
// that were never extracted, and normalizes categories to the known set.
func filter(entities []Entity, tokens []extraction.Token, threshold float64) []Entity {
	known := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		known[t.Key] = struct{}{}
	}

	kept := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if e.Confidence < threshold {
			continue
		}
		if _, ok := known[e.Key]; !ok {
			continue
		}
		e.Category = normalizeCategory(e.Category)
		kept = append(kept, e)
	}
	return kept
}

func normalizeCategory(category string) string {
	switch strings.ToUpper(strings.TrimSpace(category)) {
	case CategoryPerson:
		return CategoryPerson
	case CategoryOrg, "ORGANIZATION", "COMPANY":
		return CategoryOrg
	case CategoryDate:
		return CategoryDate
	case CategoryMoney, "CURRENCY", "SALARY":
		return CategoryMoney
	case CategoryLocation, "GPE", "PLACE":
		return CategoryLocation
	default:
		return CategoryOther
	}
}

func composePrompt(text string, tokens []extraction.Token) string {
	var sb strings.Builder

	sb.WriteString("You label placeholder variables found in an employment offer letter template.\n")
	sb.WriteString("For each key below, classify the entity the placeholder stands for and, when the\n")
	sb.WriteString("surrounding text makes a concrete value obvious, propose it.\n\n")
	sb.WriteString("Categories: PERSON, ORG, DATE, MONEY, LOCATION, OTHER.\n\n")
	sb.WriteString("Respond with JSON only:\n")
	sb.WriteString(`{"entities":[{"key":"...","category":"...","suggested_value":"...","confidence":0.0}]}`)
	sb.WriteString("\n\nKeys:\n")

	for _, t := range tokens {
		fmt.Fprintf(&sb, "- %s (appears as %s)\n", t.Key, t.Raw)
	}

	excerpt := text
	if len(excerpt) > maxExcerptLen {
		excerpt = excerpt[:maxExcerptLen]
	}
	sb.WriteString("\nDocument text:\n")
	sb.WriteString(excerpt)

	return sb.String()
}
