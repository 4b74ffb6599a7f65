package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/okabe-d/llm-hub/internal/domain"
	"github.com/okabe-d/llm-hub/internal/provider"
)

// ChatService orchestrates a single chat turn: it reconciles session-scoped
// state with per-request overrides, invokes the resolved adapter and updates
// the session transcript.
//
// Concurrent calls against the same session id are not serialized; their
// transcript updates are last-write-wins at the store.
type ChatService struct {
	providers       map[string]provider.Adapter
	sessions        *SessionService
	defaultProvider string
}

// NewChatService creates a chat service. The provider map and default are
// fixed at construction.
func NewChatService(providers map[string]provider.Adapter, sessions *SessionService, defaultProvider string) *ChatService {
	return &ChatService{
		providers:       providers,
		sessions:        sessions,
		defaultProvider: defaultProvider,
	}
}

// ChatParams are the inputs for one chat turn
type ChatParams struct {
	Prompt       string
	Provider     string
	Model        string
	SessionID    string
	SystemPrompt string
	Timeout      time.Duration
}

// ChatResult is the outcome of a non-streaming chat turn
type ChatResult struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id,omitempty"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
}

// StreamEvent is one event of a streamed chat turn. The stream carries zero
// or more content events followed by exactly one terminal event, either done
// or error.
type StreamEvent struct {
	Type      string           `json:"type"` // "content", "done", "error"
	Text      string           `json:"text,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Provider  string           `json:"provider,omitempty"`
	Model     string           `json:"model,omitempty"`
	Error     string           `json:"error,omitempty"`
	Code      domain.ErrorCode `json:"code,omitempty"`
}

// resolution is the effective configuration for one turn
type resolution struct {
	session      *domain.Session
	adapter      provider.Adapter
	provider     string
	model        string
	systemPrompt string
}

// resolve reconciles session state with request overrides. With a session,
// the session is the source of truth for provider and system prompt; without
// one, request values (or configured defaults) apply directly. All
// validation happens here, before any external process is spawned.
func (s *ChatService) resolve(ctx context.Context, params ChatParams) (*resolution, error) {
	session, err := s.sessions.GetSessionOrNone(ctx, params.SessionID)
	if err != nil {
		return nil, err
	}

	if session != nil {
		if err := s.sessions.ValidateProviderMatch(session, params.Provider); err != nil {
			return nil, err
		}

		model, err := s.sessions.ValidateModel(session, params.Model)
		if err != nil {
			return nil, err
		}

		systemPrompt := session.EffectiveSystemPrompt()
		if systemPrompt == "" {
			systemPrompt = params.SystemPrompt
		}

		return &resolution{
			session:      session,
			adapter:      s.providers[session.Provider],
			provider:     session.Provider,
			model:        model,
			systemPrompt: systemPrompt,
		}, nil
	}

	name := params.Provider
	if name == "" {
		name = s.defaultProvider
	}

	adapter, ok := s.providers[name]
	if !ok {
		return nil, domain.NewUnknownProvider(name)
	}

	return &resolution{
		adapter:      adapter,
		provider:     name,
		model:        adapter.ResolveModel(params.Model),
		systemPrompt: params.SystemPrompt,
	}, nil
}

// Chat performs a synchronous chat turn. The user message is appended to the
// transcript before the provider call, so a mid-call failure still leaves
// the user's turn recorded.
func (s *ChatService) Chat(ctx context.Context, params ChatParams) (*ChatResult, error) {
	res, err := s.resolve(ctx, params)
	if err != nil {
		return nil, err
	}

	if res.session != nil {
		res.session.AddUserMessage(params.Prompt)
	}

	log.Info().
		Str("provider", res.provider).
		Str("model", res.model).
		Str("session_id", sessionID(res.session)).
		Msg("chat request")

	response, err := res.adapter.Chat(ctx, provider.Request{
		Prompt:       params.Prompt,
		Model:        res.model,
		SystemPrompt: res.systemPrompt,
		Timeout:      params.Timeout,
	})
	if err != nil {
		return nil, err
	}

	if res.session != nil {
		res.session.AddAssistantMessage(response)
		// The provider answered but the turn was not persisted; the caller
		// must not be told the session was updated
		if _, err := s.sessions.UpdateSession(ctx, res.session); err != nil {
			log.Error().Err(err).Str("session_id", res.session.ID).Msg("failed to persist session after chat")
			return nil, err
		}
	}

	return &ChatResult{
		Response:  response,
		SessionID: sessionID(res.session),
		Provider:  res.provider,
		Model:     res.model,
	}, nil
}

// ChatStream performs a streaming chat turn. Errors at any stage, including
// before the provider is invoked, surface as the stream's terminal error
// event; the transport has already committed to an event channel.
func (s *ChatService) ChatStream(ctx context.Context, params ChatParams) <-chan StreamEvent {
	events := make(chan StreamEvent, 16)

	go func() {
		defer close(events)

		res, err := s.resolve(ctx, params)
		if err != nil {
			events <- errorEvent(err)
			return
		}

		if res.session != nil {
			res.session.AddUserMessage(params.Prompt)
		}

		log.Info().
			Str("provider", res.provider).
			Str("model", res.model).
			Str("session_id", sessionID(res.session)).
			Msg("chat stream request")

		chunks, err := res.adapter.ChatStream(ctx, provider.Request{
			Prompt:       params.Prompt,
			Model:        res.model,
			SystemPrompt: res.systemPrompt,
		})
		if err != nil {
			events <- errorEvent(err)
			return
		}

		var response strings.Builder

		for chunk := range chunks {
			if chunk.Err != nil {
				events <- errorEvent(chunk.Err)
				return
			}

			response.WriteString(chunk.Text)

			select {
			case events <- StreamEvent{
				Type:      "content",
				Text:      chunk.Text,
				SessionID: sessionID(res.session),
				Provider:  res.provider,
				Model:     res.model,
			}:
			case <-ctx.Done():
				return
			}
		}

		if res.session != nil {
			res.session.AddAssistantMessage(response.String())
			if _, err := s.sessions.UpdateSession(ctx, res.session); err != nil {
				log.Error().Err(err).Str("session_id", res.session.ID).Msg("failed to persist session after stream")
				events <- errorEvent(err)
				return
			}
		}

		events <- StreamEvent{
			Type:      "done",
			SessionID: sessionID(res.session),
			Provider:  res.provider,
			Model:     res.model,
		}
	}()

	return events
}

func sessionID(session *domain.Session) string {
	if session == nil {
		return ""
	}
	return session.ID
}

func errorEvent(err error) StreamEvent {
	return StreamEvent{
		Type:  "error",
		Error: err.Error(),
		Code:  domain.CodeOf(err),
	}
}
