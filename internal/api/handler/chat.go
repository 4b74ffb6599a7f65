package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/okabe-d/llm-hub/internal/api/response"
	"github.com/okabe-d/llm-hub/internal/service"
)

var validate = validator.New()

// sessionIDHeader carries conversation affinity across requests
const sessionIDHeader = "X-Session-ID"

// ChatMessage is one turn of an OpenAI-style message list
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required"`
}

// ChatCompletionRequest is the chat endpoint's request body
type ChatCompletionRequest struct {
	Messages       []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	Provider       string        `json:"provider,omitempty"`
	Model          string        `json:"model,omitempty"`
	Stream         bool          `json:"stream,omitempty"`
	TimeoutSeconds float64       `json:"timeout,omitempty" validate:"gte=0,lte=600"`
}

// ChatHandler serves chat completions
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler creates a chat handler
func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// Completions handles POST /chat/completions, streaming over SSE when
// requested. The X-Session-ID header binds the call to a session; a missing
// or lapsed session means the call runs without session state.
func (h *ChatHandler) Completions(w http.ResponseWriter, r *http.Request) {
	var req ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	prompt, systemPrompt, ok := extractPrompt(req.Messages)
	if !ok {
		response.BadRequest(w, "at least one user message is required")
		return
	}

	params := service.ChatParams{
		Prompt:       prompt,
		Provider:     req.Provider,
		Model:        req.Model,
		SessionID:    r.Header.Get(sessionIDHeader),
		SystemPrompt: systemPrompt,
		Timeout:      time.Duration(req.TimeoutSeconds * float64(time.Second)),
	}

	if req.Stream {
		h.stream(w, r, params)
		return
	}

	result, err := h.chat.Chat(r.Context(), params)
	if err != nil {
		log.Error().Err(err).Msg("chat failed")
		response.DomainError(w, err)
		return
	}

	response.OK(w, result)
}

// stream writes the orchestrator's event stream as server-sent events
func (h *ChatHandler) stream(w http.ResponseWriter, r *http.Request, params service.ChatParams) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range h.chat.ChatStream(r.Context(), params) {
		name := "message"
		switch event.Type {
		case "done":
			name = "done"
		case "error":
			name = "error"
		}

		data, err := json.Marshal(event)
		if err != nil {
			log.Error().Err(err).Msg("failed to marshal stream event")
			continue
		}

		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
		flusher.Flush()
	}
}

// extractPrompt pulls the last user message as the prompt and the first
// system message as the system prompt
func extractPrompt(messages []ChatMessage) (prompt, systemPrompt string, ok bool) {
	for _, msg := range messages {
		switch msg.Role {
		case "user":
			prompt = msg.Content
			ok = true
		case "system":
			if systemPrompt == "" {
				systemPrompt = msg.Content
			}
		}
	}
	return prompt, systemPrompt, ok
}
