// Package store defines the session persistence contract. Backend selection
// (in-memory vs Redis) is a deployment-time decision made once at startup;
// there is no per-call fallback between implementations.
package store

import (
	"context"

	"github.com/okabe-d/llm-hub/internal/domain"
)

// SessionStore persists and retrieves sessions with expiry semantics.
//
// Get performs lazy expiry: a session found past its ExpiresAt is returned
// with status expired even if the stored representation is stale; callers
// must not rely on physical deletion at read time. Update preserves the
// remaining TTL rather than resetting it.
type SessionStore interface {
	// Create persists a new session, assigning ExpiresAt from the default
	// TTL when unset, and returns the stored session
	Create(ctx context.Context, session *domain.Session) (*domain.Session, error)

	// Get returns the session or (nil, nil) when it was never created or
	// has been evicted
	Get(ctx context.Context, sessionID string) (*domain.Session, error)

	// Update refreshes UpdatedAt and persists the full session state
	Update(ctx context.Context, session *domain.Session) (*domain.Session, error)

	// Delete removes the session, reporting whether it existed
	Delete(ctx context.Context, sessionID string) (bool, error)

	// Exists reports whether the session is present
	Exists(ctx context.Context, sessionID string) (bool, error)

	// List returns sessions ordered by CreatedAt descending. Pagination is
	// a plain slice; results are not stable across concurrent mutations.
	List(ctx context.Context, limit, offset int) ([]*domain.Session, error)

	// Close releases underlying resources. Idempotent.
	Close() error
}
