package extraction_test

import (
	"testing"

	"github.com/scrivenerhq/scrivener/internal/extraction"
)

func TestTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []extraction.Token
	}{
		{
			name: "double angle",
			text: "Dear <<Candidate Name>>,",
			want: []extraction.Token{
				{Raw: "<<Candidate Name>>", Body: "Candidate Name", Key: "candidate_name"},
			},
		},
		{
			name: "square brackets",
			text: "Your salary is [Salary Amount] per year.",
			want: []extraction.Token{
				{Raw: "[Salary Amount]", Body: "Salary Amount", Key: "salary_amount"},
			},
		},
		{
			name: "curly braces",
			text: "Start date: {start date}",
			want: []extraction.Token{
				{Raw: "{start date}", Body: "start date", Key: "start_date"},
			},
		},
		{
			name: "mixed grammars in document order",
			text: "{c} then [b] then <<a>>",
			want: []extraction.Token{
				{Raw: "{c}", Body: "c", Key: "c"},
				{Raw: "[b]", Body: "b", Key: "b"},
				{Raw: "<<a>>", Body: "a", Key: "a"},
			},
		},
		{
			name: "higher priority grammar claims overlapping span",
			text: "see {[x]} here",
			want: []extraction.Token{
				{Raw: "[x]", Body: "x", Key: "x"},
			},
		},
		{
			name: "empty body rejected",
			text: "blank [ ] and {} markers",
			want: nil,
		},
		{
			name: "no newline inside token",
			text: "[first\nsecond]",
			want: nil,
		},
		{
			name: "no tokens",
			text: "a plain sentence without placeholders",
			want: nil,
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extraction.Tokens(tt.text)

			if len(got) != len(tt.want) {
				t.Fatalf("token count: got %d (%v), want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d: got %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{body: "Candidate Name", want: "candidate_name"},
		{body: "  Salary   Amount  ", want: "salary_amount"},
		{body: "start\tdate", want: "start_date"},
		{body: "TITLE", want: "title"},
	}

	for _, tt := range tests {
		if got := extraction.NormalizeKey(tt.body); got != tt.want {
			t.Errorf("NormalizeKey(%q): got %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestMerge(t *testing.T) {
	tokens := []extraction.Token{
		{Raw: "[Candidate Name]", Body: "Candidate Name", Key: "candidate_name"},
		{Raw: "[Salary]", Body: "Salary", Key: "salary"},
		{Raw: "<<candidate name>>", Body: "candidate name", Key: "candidate_name"},
		{Raw: "[Candidate Name]", Body: "Candidate Name", Key: "candidate_name"},
	}

	annotations := map[string]extraction.Annotation{
		"candidate_name": {Category: "PERSON"},
		"salary":         {Category: "MONEY", SuggestedValue: "$120,000"},
	}

	variables := extraction.Merge(tokens, annotations)

	if len(variables) != 2 {
		t.Fatalf("variable count: got %d, want 2", len(variables))
	}

	name := variables[0]
	if name.Key != "candidate_name" {
		t.Errorf("first key: got %q, want candidate_name", name.Key)
	}
	if name.Occurrences != 3 {
		t.Errorf("occurrences: got %d, want 3", name.Occurrences)
	}
	if name.RawToken != "[Candidate Name]" {
		t.Errorf("raw token: got %q, want first-seen form", name.RawToken)
	}
	wantForms := []string{"[Candidate Name]", "<<candidate name>>"}
	if len(name.RawForms) != 2 || name.RawForms[0] != wantForms[0] || name.RawForms[1] != wantForms[1] {
		t.Errorf("raw forms: got %v, want %v", name.RawForms, wantForms)
	}
	if name.Category == nil || *name.Category != "PERSON" {
		t.Errorf("category: got %v, want PERSON", name.Category)
	}
	if name.SuggestedValue != nil {
		t.Errorf("suggested value: got %v, want nil", name.SuggestedValue)
	}

	salary := variables[1]
	if salary.Occurrences != 1 {
		t.Errorf("salary occurrences: got %d, want 1", salary.Occurrences)
	}
	if len(salary.RawForms) != 1 || salary.RawForms[0] != "[Salary]" {
		t.Errorf("salary raw forms: got %v, want [[Salary]]", salary.RawForms)
	}
	if salary.SuggestedValue == nil || *salary.SuggestedValue != "$120,000" {
		t.Errorf("salary suggested value: got %v, want $120,000", salary.SuggestedValue)
	}
}

func TestMergeNoAnnotations(t *testing.T) {
	tokens := []extraction.Token{
		{Raw: "[title]", Body: "title", Key: "title"},
	}

	variables := extraction.Merge(tokens, nil)
	if len(variables) != 1 {
		t.Fatalf("variable count: got %d, want 1", len(variables))
	}
	if variables[0].Category != nil || variables[0].SuggestedValue != nil {
		t.Error("expected no classification fields without annotations")
	}
}
