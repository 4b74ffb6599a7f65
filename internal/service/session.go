// Package service contains the session and chat orchestration logic sitting
// between the HTTP transport and the store/provider infrastructure.
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/okabe-d/llm-hub/internal/domain"
	"github.com/okabe-d/llm-hub/internal/provider"
	"github.com/okabe-d/llm-hub/internal/store"
)

// SessionService owns session CRUD and provider/model validation. Providers
// are injected once at construction; there is no ambient registry.
type SessionService struct {
	store      store.SessionStore
	providers  map[string]provider.Adapter
	defaultTTL time.Duration
}

// NewSessionService creates a session service
func NewSessionService(sessionStore store.SessionStore, providers map[string]provider.Adapter, defaultTTL time.Duration) *SessionService {
	return &SessionService{
		store:      sessionStore,
		providers:  providers,
		defaultTTL: defaultTTL,
	}
}

// CreateSessionParams are the caller-supplied session creation inputs
type CreateSessionParams struct {
	Provider     string
	Model        string
	SystemPrompt string
	Context      *domain.SessionContext
	TTL          time.Duration
	Metadata     map[string]any
}

// CreateSession validates the provider and model, then persists a new
// active session bound to them
func (s *SessionService) CreateSession(ctx context.Context, params CreateSessionParams) (*domain.Session, error) {
	adapter, ok := s.providers[params.Provider]
	if !ok {
		return nil, domain.NewUnknownProvider(params.Provider)
	}

	model := adapter.ResolveModel(params.Model)
	if !provider.Supports(adapter, model) {
		return nil, domain.NewInvalidModel(model, params.Provider, adapter.SupportedModels())
	}

	ttl := params.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	expires := time.Now().UTC().Add(ttl)

	session := domain.NewSession(params.Provider, model)
	session.SystemPrompt = params.SystemPrompt
	session.Context = params.Context
	session.ExpiresAt = &expires
	session.Metadata = params.Metadata

	session, err := s.store.Create(ctx, session)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", session.ID).
		Str("provider", session.Provider).
		Str("model", session.Model).
		Msg("created session")

	return session, nil
}

// GetSession fetches a session, distinguishing "never existed"
// (SESSION_NOT_FOUND) from "existed but lapsed" (SESSION_EXPIRED)
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.NewSessionNotFound(sessionID)
	}
	if !session.IsActive() {
		return nil, domain.NewSessionExpired(sessionID)
	}
	return session, nil
}

// GetSessionOrNone absorbs not-found and expired into a nil result, for
// callers treating the session as optional context
func (s *SessionService) GetSessionOrNone(ctx context.Context, sessionID string) (*domain.Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		switch domain.CodeOf(err) {
		case domain.CodeSessionNotFound, domain.CodeSessionExpired:
			return nil, nil
		}
		return nil, err
	}
	return session, nil
}

// UpdateSession persists the session's current state
func (s *SessionService) UpdateSession(ctx context.Context, session *domain.Session) (*domain.Session, error) {
	return s.store.Update(ctx, session)
}

// DeleteSession removes a session, reporting whether it existed
func (s *SessionService) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	return s.store.Delete(ctx, sessionID)
}

// CloseSession transitions an active session to closed
func (s *SessionService) CloseSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	session.Close()
	return s.store.Update(ctx, session)
}

// ListSessions returns sessions ordered by creation time descending
func (s *SessionService) ListSessions(ctx context.Context, limit, offset int) ([]*domain.Session, error) {
	return s.store.List(ctx, limit, offset)
}

// ValidateProviderMatch fails when a requested provider conflicts with the
// session's bound provider. An absent request is always compatible.
func (s *SessionService) ValidateProviderMatch(session *domain.Session, requestedProvider string) error {
	if requestedProvider != "" && requestedProvider != session.Provider {
		return domain.NewProviderMismatch(session.Provider, requestedProvider)
	}
	return nil
}

// ValidateModel resolves the effective model for a session-scoped call,
// defaulting to the session's stored model when no override is given
func (s *SessionService) ValidateModel(session *domain.Session, requestedModel string) (string, error) {
	adapter, ok := s.providers[session.Provider]
	if !ok {
		return "", domain.NewUnknownProvider(session.Provider)
	}

	model := requestedModel
	if model == "" {
		model = session.Model
	}

	model = adapter.ResolveModel(model)
	if !provider.Supports(adapter, model) {
		return "", domain.NewInvalidModel(model, session.Provider, adapter.SupportedModels())
	}

	return model, nil
}

// Provider returns the adapter for a provider name, or nil when unknown
func (s *SessionService) Provider(name string) provider.Adapter {
	return s.providers[name]
}

// ProviderInfo describes one configured provider
type ProviderInfo struct {
	Name         string   `json:"name"`
	Models       []string `json:"models"`
	DefaultModel string   `json:"default_model"`
}

// Providers lists all configured providers with their models
func (s *SessionService) Providers() []ProviderInfo {
	infos := make([]ProviderInfo, 0, len(s.providers))
	for name, adapter := range s.providers {
		infos = append(infos, ProviderInfo{
			Name:         name,
			Models:       adapter.SupportedModels(),
			DefaultModel: adapter.DefaultModel(),
		})
	}
	return infos
}
