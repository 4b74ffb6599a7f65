package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/okabe-d/llm-hub/internal/domain"
	"github.com/okabe-d/llm-hub/internal/provider"
)

func newMemoryService(store *MockSessionStore, providers map[string]provider.Adapter) *MemoryService {
	sessions := NewSessionService(store, providers, time.Hour)
	return NewMemoryService(sessions, providers, 30*time.Second)
}

func transcriptSession() *domain.Session {
	session := domain.NewSession("claude", "model-a")
	session.AddUserMessage("what is a goroutine")
	session.AddAssistantMessage("a lightweight thread managed by the runtime")
	return session
}

func TestMemoryService_ExportMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("uncompressed markdown", func(t *testing.T) {
		session := transcriptSession()
		store := new(MockSessionStore)
		store.On("Get", ctx, session.ID).Return(session, nil)

		svc := newMemoryService(store, nil)

		export, err := svc.ExportMemory(ctx, session.ID, CompressionNone, "", "markdown")
		assert.NoError(t, err)
		assert.Equal(t, session.ID, export.SessionID)
		assert.Contains(t, export.Content, "## user")
		assert.Contains(t, export.Content, "what is a goroutine")
		assert.Contains(t, export.Content, "## assistant")
		assert.Empty(t, export.CompressedMemory)
		assert.Equal(t, 2, export.Metadata["message_count"])
	})

	t.Run("uncompressed json", func(t *testing.T) {
		session := transcriptSession()
		store := new(MockSessionStore)
		store.On("Get", ctx, session.ID).Return(session, nil)

		svc := newMemoryService(store, nil)

		export, err := svc.ExportMemory(ctx, session.ID, CompressionNone, "", "json")
		assert.NoError(t, err)

		var messages []domain.Message
		assert.NoError(t, json.Unmarshal([]byte(export.Content), &messages))
		assert.Len(t, messages, 2)
	})

	t.Run("compressed via provider", func(t *testing.T) {
		session := transcriptSession()
		store := new(MockSessionStore)
		store.On("Get", ctx, session.ID).Return(session, nil)

		adapter := newStubAdapter([]string{"model-a"}, "model-a")
		adapter.On("Chat", ctx, mock.MatchedBy(func(req provider.Request) bool {
			return strings.Contains(req.Prompt, "what is a goroutine")
		})).Return("digest", nil)

		svc := newMemoryService(store, map[string]provider.Adapter{"claude": adapter})

		export, err := svc.ExportMemory(ctx, session.ID, CompressionMedium, "", "markdown")
		assert.NoError(t, err)
		assert.Equal(t, "digest", export.CompressedMemory)
		assert.Empty(t, export.Content)
	})

	t.Run("unknown compression provider", func(t *testing.T) {
		session := transcriptSession()
		store := new(MockSessionStore)
		store.On("Get", ctx, session.ID).Return(session, nil)

		svc := newMemoryService(store, map[string]provider.Adapter{})

		_, err := svc.ExportMemory(ctx, session.ID, CompressionHigh, "mistral", "markdown")
		assert.Equal(t, domain.CodeUnknownProvider, domain.CodeOf(err))
	})

	t.Run("missing session", func(t *testing.T) {
		store := new(MockSessionStore)
		store.On("Get", ctx, "missing").Return(nil, nil)

		svc := newMemoryService(store, nil)

		_, err := svc.ExportMemory(ctx, "missing", CompressionNone, "", "markdown")
		assert.Equal(t, domain.CodeSessionNotFound, domain.CodeOf(err))
	})
}

func TestMemoryService_CloseSessionWithMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("digest then close", func(t *testing.T) {
		session := transcriptSession()
		store := new(MockSessionStore)
		store.On("Get", ctx, session.ID).Return(session, nil)
		store.On("Update", ctx, session).
			Return(func(_ context.Context, s *domain.Session) (*domain.Session, error) { return s, nil })

		adapter := newStubAdapter([]string{"model-a"}, "model-a")
		adapter.On("Chat", ctx, mock.Anything).Return("digest", nil)

		svc := newMemoryService(store, map[string]provider.Adapter{"claude": adapter})

		result, err := svc.CloseSessionWithMemory(ctx, session.ID, CompressionMedium, "")
		assert.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, "digest", result.CompressedMemory)
		assert.Equal(t, string(domain.StatusClosed), result.Status)
		assert.Equal(t, domain.StatusClosed, session.Status)
		store.AssertExpectations(t)
	})

	t.Run("compression failure keeps session open", func(t *testing.T) {
		session := transcriptSession()
		store := new(MockSessionStore)
		store.On("Get", ctx, session.ID).Return(session, nil)

		adapter := newStubAdapter([]string{"model-a"}, "model-a")
		adapter.On("Chat", ctx, mock.Anything).
			Return("", domain.NewProviderError("claude", "exit status 1"))

		svc := newMemoryService(store, map[string]provider.Adapter{"claude": adapter})

		_, err := svc.CloseSessionWithMemory(ctx, session.ID, CompressionMedium, "")
		assert.Equal(t, domain.CodeProviderError, domain.CodeOf(err))
		assert.Equal(t, domain.StatusActive, session.Status)
	})

	t.Run("empty transcript skips compression", func(t *testing.T) {
		session := domain.NewSession("claude", "model-a")
		store := new(MockSessionStore)
		store.On("Get", ctx, session.ID).Return(session, nil)
		store.On("Update", ctx, session).
			Return(func(_ context.Context, s *domain.Session) (*domain.Session, error) { return s, nil })

		svc := newMemoryService(store, map[string]provider.Adapter{})

		result, err := svc.CloseSessionWithMemory(ctx, session.ID, CompressionMedium, "")
		assert.NoError(t, err)
		assert.Empty(t, result.CompressedMemory)
	})
}
