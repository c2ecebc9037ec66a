package extraction

import "slices"

// Variable is one placeholder slot in a document: the canonical key, every
// raw token form it occurs under, how many times it occurs, and optional
// entity classification and AI value suggestion. RawToken keeps the
// first-seen form for display; RawForms carries every distinct delimited
// form so replacement can rewrite all of them.
type Variable struct {
	Key            string   `json:"key"`
	RawToken       string   `json:"raw_token"`
	RawForms       []string `json:"raw_forms"`
	Occurrences    int      `json:"occurrences"`
	Category       *string  `json:"category,omitempty"`
	SuggestedValue *string  `json:"suggested_value,omitempty"`
	CurrentValue   string   `json:"current_value"`
}

// Annotation carries per-key entity classification output to be merged onto
// pattern-extracted variables. Either field may be empty.
type Annotation struct {
	Category       string
	SuggestedValue string
}

// Merge reconciles pattern tokens and entity annotations into the canonical
// variable set, keyed by normalized key. Occurrence counts for the same key
// are summed across raw token forms, and every distinct form is collected so
// a replacement reaches occurrences under any delimiter grammar. First-seen
// order is preserved.
func Merge(tokens []Token, annotations map[string]Annotation) []Variable {
	index := make(map[string]int)
	variables := make([]Variable, 0, len(tokens))

	for _, token := range tokens {
		if i, ok := index[token.Key]; ok {
			variables[i].Occurrences++
			if !slices.Contains(variables[i].RawForms, token.Raw) {
				variables[i].RawForms = append(variables[i].RawForms, token.Raw)
			}
			continue
		}

		v := Variable{
			Key:         token.Key,
			RawToken:    token.Raw,
			RawForms:    []string{token.Raw},
			Occurrences: 1,
		}

		if a, ok := annotations[token.Key]; ok {
			if a.Category != "" {
				category := a.Category
				v.Category = &category
			}
			if a.SuggestedValue != "" {
				suggested := a.SuggestedValue
				v.SuggestedValue = &suggested
			}
		}

		index[token.Key] = len(variables)
		variables = append(variables, v)
	}

	return variables
}
