package vars

import (
	"maps"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitchain/packages/builtin"
)

// WarnFunc is called with unresolved placeholder reports.
type WarnFunc func(msg string, args ...any)

type entry struct {
	value    any
	expireAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// Store is a concurrency-safe key/value table with per-entry TTL.
// A single mutex guards the table, so eviction of an expired entry and a
// concurrent Set of the same key are serialized.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
	funcs   *builtin.Registry
	warn    WarnFunc
}

type Option func(*Store)

// WithClock replaces time.Now, mainly for TTL tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func WithWarnFunc(fn WarnFunc) Option {
	return func(s *Store) {
		s.warn = fn
	}
}

func WithFunctions(r *builtin.Registry) Option {
	return func(s *Store) {
		s.funcs = r
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]entry),
		now:     time.Now,
		funcs:   builtin.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set stores value under key, replacing any previous entry. A ttl of zero or
// less means the entry never expires within the run.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expireAt = s.now().Add(ttl)
	}
	s.entries[key] = e
}

// SetAll stores every pair without expiry.
func (s *Store) SetAll(values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.entries[k] = entry{value: v}
	}
}

// Get returns the live value for key. An expired entry is deleted and
// reported as absent.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(s.now()) {
		delete(s.entries, key)
		return nil, false
	}
	return e.value, true
}

func (s *Store) GetDefault(key string, def any) any {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.entries)
}

// GetAll returns a snapshot of the live entries and evicts expired ones.
func (s *Store) GetAll() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make(map[string]any, len(s.entries))
	maps.DeleteFunc(s.entries, func(k string, e entry) bool {
		if e.expired(now) {
			return true
		}
		out[k] = e.value
		return false
	})
	return out
}

func (s *Store) Len() int {
	return len(s.GetAll())
}

func (s *Store) warnf(msg string, args ...any) {
	if s.warn != nil {
		s.warn(msg, args...)
	}
}
