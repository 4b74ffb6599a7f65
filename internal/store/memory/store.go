// Package memory provides an in-process session store for development and
// testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okabe-d/llm-hub/internal/domain"
)

// Store keeps sessions in a map guarded by a single mutex. Operations are
// memory-only and sub-microsecond, so one critical section per call is an
// acceptable throughput tradeoff.
//
// Reads hand out copies and writes store copies, mirroring the snapshot
// semantics a marshaling store gets for free. Callers may mutate what they
// get back without racing other callers; concurrent updates to the same id
// are last-write-wins.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	ttl      time.Duration
}

// clone copies the session and its Messages slice. Context is shared; it is
// immutable after session creation. Metadata is copied shallowly.
func clone(session *domain.Session) *domain.Session {
	copied := *session
	copied.Messages = append([]domain.Message(nil), session.Messages...)
	if session.Metadata != nil {
		copied.Metadata = make(map[string]any, len(session.Metadata))
		for k, v := range session.Metadata {
			copied.Metadata[k] = v
		}
	}
	return &copied
}

// NewStore creates an in-memory store with the given default session TTL
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*domain.Session),
		ttl:      ttl,
	}
}

// Create persists a session, assigning ExpiresAt from the default TTL when
// unset. An existing id is overwritten; ids are generated, so collisions are
// not expected.
func (s *Store) Create(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.ExpiresAt == nil {
		expires := time.Now().UTC().Add(s.ttl)
		session.ExpiresAt = &expires
	}

	s.sessions[session.ID] = clone(session)
	return session, nil
}

// Get returns a copy of the session, surfacing lazy expiry: a session past
// its ExpiresAt comes back with status expired rather than being deleted
// here. The expired status is applied to the copy; stored state is not
// touched on read.
func (s *Store) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}

	copied := clone(session)
	if copied.ExpiresAt != nil && time.Now().UTC().After(*copied.ExpiresAt) {
		copied.Status = domain.StatusExpired
	}

	return copied, nil
}

// Update refreshes UpdatedAt and persists the session
func (s *Store) Update(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.UpdatedAt = time.Now().UTC()
	s.sessions[session.ID] = clone(session)
	return session, nil
}

// Delete removes the session, reporting whether it existed
func (s *Store) Delete(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(s.sessions, sessionID)
	return true, nil
}

// Exists reports whether the session is present
func (s *Store) Exists(ctx context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[sessionID]
	return ok, nil
}

// List returns copies of the sessions ordered by CreatedAt descending
func (s *Store) List(ctx context.Context, limit, offset int) ([]*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]*domain.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, clone(session))
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	if offset >= len(sessions) {
		return []*domain.Session{}, nil
	}
	end := offset + limit
	if end > len(sessions) {
		end = len(sessions)
	}
	return sessions[offset:end], nil
}

// Close is a no-op; the store holds no resources beyond process memory.
// Idempotent.
func (s *Store) Close() error {
	return nil
}

// CleanupExpired evicts sessions past their ExpiresAt, returning the count
// removed
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	removed := 0
	for id, session := range s.sessions {
		if session.ExpiresAt != nil && now.After(*session.ExpiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
