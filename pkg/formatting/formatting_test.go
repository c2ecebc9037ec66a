package formatting_test

import (
	"errors"
	"testing"

	"github.com/scrivenerhq/scrivener/pkg/formatting"
)

func TestParseBytes(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "25MB", want: 25 * 1024 * 1024},
		{in: "512 KB", want: 512 * 1024},
		{in: "1.5GB", want: int64(1.5 * 1024 * 1024 * 1024)},
		{in: "2048", want: 2048},
		{in: "10mb", want: 10 * 1024 * 1024},
		{in: "", wantErr: true},
		{in: "lots", wantErr: true},
		{in: "10XB", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := formatting.ParseBytes(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error: got %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n         int64
		precision int
		want      string
	}{
		{n: 0, precision: 1, want: "0 B"},
		{n: 512, precision: 0, want: "512 B"},
		{n: 25 * 1024 * 1024, precision: 0, want: "25 MB"},
		{n: 1536, precision: 1, want: "1.5 KB"},
		{n: 1536, precision: -1, want: "2 KB"},
	}

	for _, tt := range tests {
		if got := formatting.FormatBytes(tt.n, tt.precision); got != tt.want {
			t.Errorf("FormatBytes(%d, %d): got %q, want %q", tt.n, tt.precision, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	type payload struct {
		Key      string  `json:"key"`
		Category string  `json:"category"`
		Score    float64 `json:"score"`
	}

	tests := []struct {
		name    string
		content string
		want    payload
		wantErr bool
	}{
		{
			name:    "direct json",
			content: `{"key":"salary","category":"MONEY","score":0.9}`,
			want:    payload{Key: "salary", Category: "MONEY", Score: 0.9},
		},
		{
			name:    "fenced json",
			content: "Here you go:\n```json\n{\"key\":\"salary\",\"category\":\"MONEY\",\"score\":0.9}\n```",
			want:    payload{Key: "salary", Category: "MONEY", Score: 0.9},
		},
		{
			name:    "fence without language tag",
			content: "```\n{\"key\":\"name\"}\n```",
			want:    payload{Key: "name"},
		},
		{
			name:    "prose only",
			content: "I could not produce JSON for this request.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.Parse[payload](tt.content)
			if tt.wantErr {
				if !errors.Is(err, formatting.ErrParseFailed) {
					t.Fatalf("got %v, want ErrParseFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
