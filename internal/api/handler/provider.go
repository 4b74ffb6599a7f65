package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okabe-d/llm-hub/internal/api/response"
	"github.com/okabe-d/llm-hub/internal/service"
)

// ProviderHandler serves provider metadata
type ProviderHandler struct {
	sessions *service.SessionService
}

// NewProviderHandler creates a provider handler
func NewProviderHandler(sessions *service.SessionService) *ProviderHandler {
	return &ProviderHandler{sessions: sessions}
}

// List handles GET /providers
func (h *ProviderHandler) List(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.sessions.Providers())
}

// Get handles GET /providers/{name}
func (h *ProviderHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	adapter := h.sessions.Provider(name)
	if adapter == nil {
		response.Error(w, http.StatusNotFound, map[string]any{
			"code":    "PROVIDER_NOT_FOUND",
			"message": "provider not found: " + name,
		})
		return
	}

	response.OK(w, service.ProviderInfo{
		Name:         adapter.Name(),
		Models:       adapter.SupportedModels(),
		DefaultModel: adapter.DefaultModel(),
	})
}

// Models handles GET /providers/{name}/models
func (h *ProviderHandler) Models(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	adapter := h.sessions.Provider(name)
	if adapter == nil {
		response.Error(w, http.StatusNotFound, map[string]any{
			"code":    "PROVIDER_NOT_FOUND",
			"message": "provider not found: " + name,
		})
		return
	}

	response.OK(w, adapter.SupportedModels())
}
