// Package highlight implements the single-slot relay that carries "scroll to
// and mark this text" commands from compliance review to a polling editor
// client. The relay holds at most one command; a newer command supersedes an
// unconsumed older one.
package highlight

import (
	"context"
	"sync"
	"time"
)

// DefaultSearchLimit is the prefix length used when a command's text is too
// long to match reliably as a whole.
const DefaultSearchLimit = 20

// Relay states.
const (
	StateIdle    = "idle"
	StatePending = "pending"
)

// Command is one highlight instruction. Timestamp is strictly monotonic
// across the relay's lifetime, so pollers can dedupe by keeping the highest
// timestamp they have acted on.
type Command struct {
	Text      string `json:"text"`
	Severity  string `json:"severity,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// SearchText returns the text the client should search the document for:
// the full text when it fits within limit, otherwise a rune-safe prefix.
func (c Command) SearchText(limit int) string {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	runes := []rune(c.Text)
	if len(runes) <= limit {
		return c.Text
	}
	return string(runes[:limit])
}

// Relay is the single-slot highlight channel.
type Relay struct {
	mu        sync.Mutex
	cmd       *Command
	lastStamp int64
	delivered bool
}

// New creates an idle Relay.
func New() *Relay {
	return &Relay{}
}

// Issue places a command in the slot, superseding any undelivered command.
// The assigned timestamp is strictly greater than every previous one, even
// when commands arrive within the same clock tick.
func (r *Relay) Issue(text, severity string) Command {
	r.mu.Lock()
	defer r.mu.Unlock()

	stamp := time.Now().UnixMilli()
	if stamp <= r.lastStamp {
		stamp = r.lastStamp + 1
	}
	r.lastStamp = stamp

	cmd := Command{
		Text:      text,
		Severity:  severity,
		Timestamp: stamp,
	}
	r.cmd = &cmd
	r.delivered = false

	return cmd
}

// Poll returns the held command when its timestamp is strictly greater than
// since. A command equal to or older than the caller's cursor is never
// redelivered.
func (r *Relay) Poll(since int64) (*Command, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil || r.cmd.Timestamp <= since {
		return nil, false
	}

	r.delivered = true
	cmd := *r.cmd
	return &cmd, true
}

// State reports whether an issued command is still awaiting delivery.
func (r *Relay) State() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil && !r.delivered {
		return StatePending
	}
	return StateIdle
}

// Watch polls the relay at a fixed interval until ctx is canceled, invoking
// fn once per newly issued command. It maintains its own cursor, so it acts
// on each timestamp at most once regardless of how many ticks pass while a
// command sits in the slot.
func (r *Relay) Watch(ctx context.Context, interval time.Duration, fn func(Command)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var since int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if cmd, ok := r.Poll(since); ok {
				since = cmd.Timestamp
				fn(*cmd)
			}
		}
	}
}
