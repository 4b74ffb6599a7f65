package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/okabe-d/llm-hub/internal/api/response"
	"github.com/okabe-d/llm-hub/internal/provider"
)

// StoreProber is implemented by stores exposing a health probe (Redis). The
// in-memory store has no probe and passes as nil.
type StoreProber interface {
	HealthCheck(ctx context.Context) (status string, latencyMs int64, err error)
}

// HealthHandler aggregates adapter and store health
type HealthHandler struct {
	version   string
	providers map[string]provider.Adapter
	store     StoreProber
}

// NewHealthHandler creates a health handler. store may be nil.
func NewHealthHandler(version string, providers map[string]provider.Adapter, store StoreProber) *HealthHandler {
	return &HealthHandler{version: version, providers: providers, store: store}
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]any{
		"status":    "healthy",
		"version":   h.version,
		"timestamp": time.Now().UTC(),
	})
}

// componentHealth is one component's entry in the detailed report
type componentHealth struct {
	Status          string   `json:"status"`
	LatencyMs       *int64   `json:"latency_ms,omitempty"`
	SupportedModels []string `json:"supported_models,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Detailed handles GET /health/detailed, probing the store and every
// adapter and reducing them to healthy/degraded/unhealthy
func (h *HealthHandler) Detailed(w http.ResponseWriter, r *http.Request) {
	components := map[string]componentHealth{}

	if h.store != nil {
		status, latency, err := h.store.HealthCheck(r.Context())
		entry := componentHealth{Status: status, LatencyMs: &latency}
		if err != nil {
			entry.Error = err.Error()
		}
		components["store"] = entry
	}

	for name, adapter := range h.providers {
		health := adapter.HealthCheck(r.Context())
		components[name] = componentHealth{
			Status:          health.Status,
			SupportedModels: health.SupportedModels,
			Error:           health.Error,
		}
	}

	unhealthy := 0
	for _, component := range components {
		if component.Status == provider.StatusUnhealthy {
			unhealthy++
		}
	}

	overall := "healthy"
	switch {
	case len(components) > 0 && unhealthy == len(components):
		overall = "unhealthy"
	case unhealthy > 0:
		overall = "degraded"
	}

	response.OK(w, map[string]any{
		"status":     overall,
		"version":    h.version,
		"components": components,
	})
}
