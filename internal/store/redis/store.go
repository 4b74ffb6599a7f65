// Package redis provides the Redis-backed session store used in production
// deployments, plus the rate limiter sharing its connection.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/okabe-d/llm-hub/internal/domain"
)

const sessionKeyPrefix = "llm_hub:session:"

// SessionStore persists sessions as JSON values with a Redis TTL. Per-key
// atomicity comes from Redis itself; no local locking is needed.
type SessionStore struct {
	client *Client
	ttl    time.Duration
}

// NewSessionStore creates a Redis session store with the given default TTL
func NewSessionStore(client *Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return sessionKeyPrefix + sessionID
}

// Create persists a new session. The Redis TTL is derived from the session's
// ExpiresAt when set, otherwise from the store default.
func (s *SessionStore) Create(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	ttl := s.ttl
	if session.ExpiresAt != nil {
		remaining := time.Until(*session.ExpiresAt)
		if remaining < time.Second {
			remaining = time.Second
		}
		ttl = remaining
	} else {
		expires := time.Now().UTC().Add(s.ttl)
		session.ExpiresAt = &expires
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.rdb.Set(ctx, sessionKey(session.ID), data, ttl).Err(); err != nil {
		return nil, domain.NewStorageUnavailable(err)
	}

	log.Debug().Str("session_id", session.ID).Dur("ttl", ttl).Msg("created session")
	return session, nil
}

// Get returns the session, surfacing lazy expiry for a value whose ExpiresAt
// has passed before Redis evicted it
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	data, err := s.client.rdb.Get(ctx, sessionKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStorageUnavailable(err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if session.ExpiresAt != nil && time.Now().UTC().After(*session.ExpiresAt) {
		session.Status = domain.StatusExpired
	}

	return &session, nil
}

// Update persists the full session state, preserving the remaining TTL
// rather than resetting it
func (s *SessionStore) Update(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	session.UpdatedAt = time.Now().UTC()

	key := sessionKey(session.ID)

	ttl, err := s.client.rdb.TTL(ctx, key).Result()
	if err != nil {
		return nil, domain.NewStorageUnavailable(err)
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	data, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		return nil, domain.NewStorageUnavailable(err)
	}

	log.Debug().Str("session_id", session.ID).Msg("updated session")
	return session, nil
}

// Delete removes the session, reporting whether it existed
func (s *SessionStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	removed, err := s.client.rdb.Del(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return false, domain.NewStorageUnavailable(err)
	}
	return removed > 0, nil
}

// Exists reports whether the session is present
func (s *SessionStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	count, err := s.client.rdb.Exists(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return false, domain.NewStorageUnavailable(err)
	}
	return count > 0, nil
}

// List scans all session keys, loads the sessions and returns them ordered
// by CreatedAt descending
func (s *SessionStore) List(ctx context.Context, limit, offset int) ([]*domain.Session, error) {
	var keys []string
	var cursor uint64

	for {
		batch, next, err := s.client.rdb.Scan(ctx, cursor, sessionKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, domain.NewStorageUnavailable(err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	sessions := make([]*domain.Session, 0, len(keys))
	for _, key := range keys {
		data, err := s.client.rdb.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue // evicted between scan and get
		}
		if err != nil {
			return nil, domain.NewStorageUnavailable(err)
		}

		var session domain.Session
		if err := json.Unmarshal(data, &session); err != nil {
			log.Warn().Str("key", key).Err(err).Msg("skipping undecodable session")
			continue
		}
		sessions = append(sessions, &session)
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

// Close closes the underlying connection. Idempotent.
func (s *SessionStore) Close() error {
	return s.client.Close()
}

// HealthCheck pings Redis and reports status with round-trip latency
func (s *SessionStore) HealthCheck(ctx context.Context) (string, int64, error) {
	start := time.Now()
	if err := s.client.rdb.Ping(ctx).Err(); err != nil {
		return "unhealthy", 0, err
	}
	return "healthy", time.Since(start).Milliseconds(), nil
}
