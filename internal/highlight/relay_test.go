package highlight_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/scrivenerhq/scrivener/internal/highlight"
)

func TestIssueMonotonicTimestamps(t *testing.T) {
	relay := highlight.New()

	var last int64
	for i := 0; i < 100; i++ {
		cmd := relay.Issue("at-will employment", "high")
		if cmd.Timestamp <= last {
			t.Fatalf("timestamp %d not greater than previous %d", cmd.Timestamp, last)
		}
		last = cmd.Timestamp
	}
}

func TestPollCursor(t *testing.T) {
	relay := highlight.New()

	if cmd, ok := relay.Poll(0); ok || cmd != nil {
		t.Fatal("poll on empty relay returned a command")
	}

	issued := relay.Issue("non-compete clause", "medium")

	// Strictly greater than the cursor delivers.
	cmd, ok := relay.Poll(issued.Timestamp - 1)
	if !ok || cmd == nil {
		t.Fatal("expected delivery for older cursor")
	}
	if cmd.Text != "non-compete clause" || cmd.Severity != "medium" {
		t.Errorf("got %+v, want issued command", cmd)
	}

	// Equal cursor never redelivers.
	if _, ok := relay.Poll(issued.Timestamp); ok {
		t.Error("redelivered command at equal cursor")
	}
	if _, ok := relay.Poll(issued.Timestamp + 5); ok {
		t.Error("delivered command older than cursor")
	}
}

func TestIssueSupersedes(t *testing.T) {
	relay := highlight.New()

	relay.Issue("first finding", "low")
	second := relay.Issue("second finding", "high")

	cmd, ok := relay.Poll(0)
	if !ok {
		t.Fatal("expected delivery")
	}
	if cmd.Text != "second finding" {
		t.Errorf("got %q, want superseding command", cmd.Text)
	}
	if cmd.Timestamp != second.Timestamp {
		t.Errorf("timestamp: got %d, want %d", cmd.Timestamp, second.Timestamp)
	}
}

func TestState(t *testing.T) {
	relay := highlight.New()

	if got := relay.State(); got != highlight.StateIdle {
		t.Errorf("initial state: got %q, want idle", got)
	}

	relay.Issue("pending text", "low")
	if got := relay.State(); got != highlight.StatePending {
		t.Errorf("after issue: got %q, want pending", got)
	}

	relay.Poll(0)
	if got := relay.State(); got != highlight.StateIdle {
		t.Errorf("after delivery: got %q, want idle", got)
	}

	relay.Issue("new text", "high")
	if got := relay.State(); got != highlight.StatePending {
		t.Errorf("after reissue: got %q, want pending", got)
	}
}

func TestSearchText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  string
	}{
		{
			name:  "short text passes through",
			text:  "at-will employment",
			limit: 20,
			want:  "at-will employment",
		},
		{
			name:  "long text truncated to prefix",
			text:  strings.Repeat("a", 30),
			limit: 20,
			want:  strings.Repeat("a", 20),
		},
		{
			name:  "truncation is rune safe",
			text:  strings.Repeat("é", 30),
			limit: 20,
			want:  strings.Repeat("é", 20),
		},
		{
			name:  "zero limit falls back to default",
			text:  strings.Repeat("b", 30),
			limit: 0,
			want:  strings.Repeat("b", highlight.DefaultSearchLimit),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := highlight.Command{Text: tt.text}
			if got := cmd.SearchText(tt.limit); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWatchDeliversOnce(t *testing.T) {
	relay := highlight.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan highlight.Command, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		relay.Watch(ctx, time.Millisecond, func(cmd highlight.Command) {
			seen <- cmd
		})
	}()

	relay.Issue("only once", "low")

	select {
	case cmd := <-seen:
		if cmd.Text != "only once" {
			t.Errorf("got %q, want issued command", cmd.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("watch never delivered the command")
	}

	// The command sits in the slot across further ticks but the watcher's
	// cursor prevents a second delivery.
	select {
	case cmd := <-seen:
		t.Fatalf("command delivered twice: %+v", cmd)
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}
