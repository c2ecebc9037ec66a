package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// store is the in-memory session registry. Each document carries a
// single-slot semaphore so mutating operations serialize per document while
// distinct documents proceed independently. Session entries are replaced
// whole on publish, never mutated in place, so readers holding an older
// pointer always see a consistent snapshot.
type store struct {
	mu       sync.Mutex
	entries  map[uuid.UUID]*entry
	lockWait time.Duration
}

type entry struct {
	sem     chan struct{}
	session *Session
}

func newStore(lockWait time.Duration) *store {
	return &store{
		entries:  make(map[uuid.UUID]*entry),
		lockWait: lockWait,
	}
}

func (s *store) ensure(id uuid.UUID) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		s.entries[id] = e
	}
	return e
}

// acquire takes the document's mutation slot, waiting up to the configured
// bound before giving up with ErrBusy. The returned release function must be
// called exactly once.
func (s *store) acquire(ctx context.Context, id uuid.UUID) (func(), error) {
	e := s.ensure(id)

	timer := time.NewTimer(s.lockWait)
	defer timer.Stop()

	select {
	case e.sem <- struct{}{}:
		return func() { <-e.sem }, nil
	case <-timer.C:
		return nil, ErrBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *store) get(id uuid.UUID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.session == nil {
		return nil, false
	}
	return e.session, true
}

func (s *store) put(sess *Session) {
	e := s.ensure(sess.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	e.session = sess
}

func (s *store) remove(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}
