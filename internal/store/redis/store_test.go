package redis

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okabe-d/llm-hub/internal/config"
	"github.com/okabe-d/llm-hub/internal/domain"
)

// testStore connects to the Redis named by REDIS_TEST_ADDR, skipping the
// test when none is available. Run as an integration test:
//
//	REDIS_TEST_ADDR=localhost:6379 go test ./internal/store/redis/
func testStore(t *testing.T) *SessionStore {
	t.Helper()

	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("Requires Redis connection - set REDIS_TEST_ADDR to run")
	}

	host, portStr, ok := strings.Cut(addr, ":")
	require.True(t, ok, "REDIS_TEST_ADDR must be host:port")
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client, err := NewClient(config.RedisConfig{Host: host, Port: port, DB: 15})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return NewSessionStore(client, time.Hour)
}

func TestSessionStore_RoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	session := domain.NewSession("claude", "model-a")
	session.AddUserMessage("hello")

	created, err := store.Create(ctx, session)
	assert.NoError(t, err)
	assert.NotNil(t, created.ExpiresAt)
	defer store.Delete(ctx, session.ID)

	got, err := store.Get(ctx, session.ID)
	assert.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, session.ID, got.ID)
	assert.Len(t, got.Messages, 1)

	got, err = store.Get(ctx, "missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionStore_UpdatePreservesTTL(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	session := domain.NewSession("claude", "model-a")
	expires := time.Now().UTC().Add(time.Minute)
	session.ExpiresAt = &expires

	_, err := store.Create(ctx, session)
	assert.NoError(t, err)
	defer store.Delete(ctx, session.ID)

	session.AddUserMessage("hi")
	_, err = store.Update(ctx, session)
	assert.NoError(t, err)

	// Update must not stretch the key's lifetime back out to the default
	ttl, err := store.client.rdb.TTL(ctx, sessionKey(session.ID)).Result()
	assert.NoError(t, err)
	assert.LessOrEqual(t, ttl, time.Minute)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestSessionStore_DeleteAndExists(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	session := domain.NewSession("claude", "model-a")
	_, err := store.Create(ctx, session)
	assert.NoError(t, err)

	exists, err := store.Exists(ctx, session.ID)
	assert.NoError(t, err)
	assert.True(t, exists)

	deleted, err := store.Delete(ctx, session.ID)
	assert.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, session.ID)
	assert.NoError(t, err)
	assert.False(t, deleted)
}

func TestSessionStore_LazyExpiry(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	session := domain.NewSession("claude", "model-a")
	// ExpiresAt in the past; Create clamps the Redis TTL to 1s, so the value
	// is briefly readable while logically expired
	past := time.Now().UTC().Add(-time.Minute)
	session.ExpiresAt = &past

	_, err := store.Create(ctx, session)
	assert.NoError(t, err)
	defer store.Delete(ctx, session.ID)

	got, err := store.Get(ctx, session.ID)
	assert.NoError(t, err)
	if got != nil {
		assert.Equal(t, domain.StatusExpired, got.Status)
	}
}

func TestSessionStore_HealthCheck(t *testing.T) {
	store := testStore(t)

	status, latency, err := store.HealthCheck(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "healthy", status)
	assert.GreaterOrEqual(t, latency, int64(0))
}
