package memory

import (
	"slices"
	"strings"

	"github.com/yndnr/deltamesh-go/internal/core/domain"
	"github.com/yndnr/deltamesh-go/pkg/cmap"
)

// Store is a concurrent session registry.
type Store struct {
	sessions *cmap.Map[string, *domain.Session]
}

// Option configures the Store.
type Option func(*storeOptions)

type storeOptions struct {
	shards int
}

// WithShardCount sets the number of map shards (power of two).
func WithShardCount(n int) Option {
	return func(o *storeOptions) {
		o.shards = n
	}
}

// New creates a new in-memory store.
func New(opts ...Option) *Store {
	o := storeOptions{shards: cmap.DefaultShardCount}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		sessions: cmap.NewWithShards[string, *domain.Session](o.shards),
	}
}

// Get returns the session registered under id.
func (s *Store) Get(id string) (*domain.Session, bool) {
	return s.sessions.Get(id)
}

// Insert registers a session whose ID must not be in use.
func (s *Store) Insert(session *domain.Session) error {
	if !s.sessions.SetIfAbsent(session.ID(), session) {
		return domain.ErrSessionConflict.WithDetails(session.ID())
	}
	return nil
}

// Put registers a session, replacing any session with the same ID.
// It returns the replaced session, if any.
func (s *Store) Put(session *domain.Session) (*domain.Session, bool) {
	return s.sessions.Swap(session.ID(), session)
}

// Remove unregisters session, but only while it is still the one
// registered under its ID.
func (s *Store) Remove(session *domain.Session) bool {
	return s.sessions.CompareAndDelete(session.ID(), func(cur *domain.Session) bool {
		return cur == session
	})
}

// Delete unregisters whatever session is registered under id.
func (s *Store) Delete(id string) (*domain.Session, bool) {
	return s.sessions.Pop(id)
}

// Rename moves the registration from oldID to newID.
func (s *Store) Rename(oldID, newID string) error {
	if s.sessions.Rename(oldID, newID) {
		return nil
	}
	if !s.sessions.Has(oldID) {
		return domain.ErrSessionNotFound.WithDetails(oldID)
	}
	return domain.ErrSessionConflict.WithDetails(newID)
}

// List returns all registered sessions ordered by ID.
func (s *Store) List() []*domain.Session {
	out := s.sessions.Values()
	slices.SortFunc(out, func(a, b *domain.Session) int {
		return strings.Compare(a.ID(), b.ID())
	})
	return out
}

// Range calls fn for every registered session until fn returns false.
func (s *Store) Range(fn func(*domain.Session) bool) {
	s.sessions.Range(func(_ string, v *domain.Session) bool {
		return fn(v)
	})
}

// Count returns the number of registered sessions.
func (s *Store) Count() int {
	return s.sessions.Count()
}

// Clear removes every session.
func (s *Store) Clear() {
	s.sessions.Clear()
}
