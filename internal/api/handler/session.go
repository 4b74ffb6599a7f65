package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/okabe-d/llm-hub/internal/api/response"
	"github.com/okabe-d/llm-hub/internal/domain"
	"github.com/okabe-d/llm-hub/internal/service"
)

// SessionHandler serves session CRUD and memory export
type SessionHandler struct {
	sessions *service.SessionService
	memory   *service.MemoryService
}

// NewSessionHandler creates a session handler
func NewSessionHandler(sessions *service.SessionService, memory *service.MemoryService) *SessionHandler {
	return &SessionHandler{sessions: sessions, memory: memory}
}

// CreateSessionRequest is the session creation request body
type CreateSessionRequest struct {
	Provider     string                 `json:"provider" validate:"required"`
	Model        string                 `json:"model,omitempty"`
	SystemPrompt string                 `json:"system_prompt,omitempty"`
	Context      *domain.SessionContext `json:"context,omitempty"`
	TTLSeconds   int                    `json:"ttl,omitempty" validate:"gte=0"`
	Metadata     map[string]any         `json:"metadata,omitempty"`
}

// SessionResponse is the serialized session returned by session endpoints
type SessionResponse struct {
	SessionID       string     `json:"session_id"`
	Provider        string     `json:"provider"`
	Model           string     `json:"model"`
	Status          string     `json:"status"`
	SupportedModels []string   `json:"supported_models,omitempty"`
	MessageCount    int        `json:"message_count"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
}

func (h *SessionHandler) sessionResponse(session *domain.Session) SessionResponse {
	resp := SessionResponse{
		SessionID:    session.ID,
		Provider:     session.Provider,
		Model:        session.Model,
		Status:       string(session.Status),
		MessageCount: len(session.Messages),
		CreatedAt:    session.CreatedAt,
		ExpiresAt:    session.ExpiresAt,
	}
	if adapter := h.sessions.Provider(session.Provider); adapter != nil {
		resp.SupportedModels = adapter.SupportedModels()
	}
	return resp
}

// List handles GET /sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1, 100)
	offset := queryInt(r, "offset", 0, 0, 1<<30)

	sessions, err := h.sessions.ListSessions(r.Context(), limit, offset)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	items := make([]SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		items = append(items, h.sessionResponse(session))
	}

	response.OK(w, map[string]any{
		"sessions": items,
		"total":    len(items),
		"limit":    limit,
		"offset":   offset,
	})
}

// Create handles POST /sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	session, err := h.sessions.CreateSession(r.Context(), service.CreateSessionParams{
		Provider:     req.Provider,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		Context:      req.Context,
		TTL:          time.Duration(req.TTLSeconds) * time.Second,
		Metadata:     req.Metadata,
	})
	if err != nil {
		log.Error().Err(err).Msg("session create failed")
		response.DomainError(w, err)
		return
	}

	response.Created(w, h.sessionResponse(session))
}

// Get handles GET /sessions/{sessionID}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		response.DomainError(w, err)
		return
	}

	response.OK(w, h.sessionResponse(session))
}

// Delete handles DELETE /sessions/{sessionID}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	deleted, err := h.sessions.DeleteSession(r.Context(), sessionID)
	if err != nil {
		response.DomainError(w, err)
		return
	}
	if !deleted {
		response.DomainError(w, domain.NewSessionNotFound(sessionID))
		return
	}

	response.OK(w, map[string]any{"session_id": sessionID})
}

// CloseSessionRequest is the close-with-memory request body
type CloseSessionRequest struct {
	Compression string `json:"compression,omitempty" validate:"omitempty,oneof=none low medium high"`
	Provider    string `json:"provider,omitempty"`
}

// Close handles POST /sessions/{sessionID}/close
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	var req CloseSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, "invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			response.BadRequest(w, err.Error())
			return
		}
	}

	level := service.CompressionLevel(req.Compression)
	if level == "" {
		level = service.CompressionMedium
	}

	result, err := h.memory.CloseSessionWithMemory(r.Context(), chi.URLParam(r, "sessionID"), level, req.Provider)
	if err != nil {
		log.Error().Err(err).Msg("session close failed")
		response.DomainError(w, err)
		return
	}

	response.OK(w, result)
}

// Memory handles GET /sessions/{sessionID}/memory
func (h *SessionHandler) Memory(w http.ResponseWriter, r *http.Request) {
	level := service.CompressionLevel(queryDefault(r, "compression", string(service.CompressionMedium)))
	switch level {
	case service.CompressionNone, service.CompressionLow, service.CompressionMedium, service.CompressionHigh:
	default:
		response.BadRequest(w, "invalid compression level")
		return
	}

	format := queryDefault(r, "format", "markdown")
	if format != "markdown" && format != "json" {
		response.BadRequest(w, "invalid format")
		return
	}

	export, err := h.memory.ExportMemory(r.Context(), chi.URLParam(r, "sessionID"), level, r.URL.Query().Get("provider"), format)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	response.OK(w, export)
}

func queryInt(r *http.Request, name string, fallback, min, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < min || value > max {
		return fallback
	}
	return value
}

func queryDefault(r *http.Request, name, fallback string) string {
	if value := r.URL.Query().Get(name); value != "" {
		return value
	}
	return fallback
}
