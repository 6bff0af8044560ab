// Package dedup tracks recently seen message identifiers per subject so
// at-least-once delivery from the edge transport collapses to exactly-once
// logical effect.
package dedup

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultWindow is how long a recorded message id stays a duplicate.
	DefaultWindow = 24 * time.Hour
	// DefaultMaxEntries bounds the history kept per subject, evicted oldest-first.
	DefaultMaxEntries = 10000
)

// Store keeps a bounded per-subject history of processed message ids.
// Access to a single subject's history is serialized by the caller (the
// processor holds the subject gate); the store itself only guards the
// subject map.
type Store struct {
	mu         sync.Mutex
	subjects   map[string]*lru.Cache[string, time.Time]
	window     time.Duration
	maxEntries int
	duplicates atomic.Uint64
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithWindow overrides the retention window.
func WithWindow(window time.Duration) Option {
	return func(s *Store) { s.window = window }
}

// WithMaxEntries overrides the per-subject history bound. Non-positive
// values are ignored and the default bound stays in effect.
func WithMaxEntries(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a dedup store with the default 24h/10k retention policy.
func New(opts ...Option) *Store {
	s := &Store{
		subjects:   make(map[string]*lru.Cache[string, time.Time]),
		window:     DefaultWindow,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) history(subjectID string) *lru.Cache[string, time.Time] {
	s.mu.Lock()
	defer s.mu.Unlock()
	cache, ok := s.subjects[subjectID]
	if !ok {
		// lru.New only errors on a non-positive size; WithMaxEntries
		// rejects those, so maxEntries is always positive here.
		cache, _ = lru.New[string, time.Time](s.maxEntries)
		s.subjects[subjectID] = cache
	}
	return cache
}

// Seen reports whether messageID was recorded for subjectID within the
// retention window. A hit counts toward the duplicate counter.
func (s *Store) Seen(subjectID, messageID string) bool {
	recordedAt, ok := s.history(subjectID).Get(messageID)
	if !ok {
		return false
	}
	if s.now().Sub(recordedAt) >= s.window {
		return false
	}
	s.duplicates.Add(1)
	return true
}

// Record marks messageID as processed for subjectID. Oldest entries are
// evicted once the per-subject bound is reached.
func (s *Store) Record(subjectID, messageID string) {
	s.history(subjectID).Add(messageID, s.now())
}

// Forget drops all history for a subject. Used when a subject's case has
// been erased so stale ids cannot linger past the cascade.
func (s *Store) Forget(subjectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subjects, subjectID)
}

// Duplicates returns the number of duplicate deliveries observed.
func (s *Store) Duplicates() uint64 {
	return s.duplicates.Load()
}
