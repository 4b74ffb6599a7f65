// Package provider defines the adapter contract that normalizes heterogeneous
// LLM backend invocation styles behind a single synchronous/streaming
// interface. Each backend variant lives in its own subpackage and is selected
// at startup by configuration.
package provider

import (
	"context"
	"slices"
	"time"
)

// Request contains a single chat invocation's parameters
type Request struct {
	Prompt       string
	Model        string
	SystemPrompt string
	Timeout      time.Duration
}

// Chunk is one incremental fragment of a streamed response. A chunk carrying
// a non-nil Err is terminal; the channel is closed after it.
type Chunk struct {
	Text string
	Err  error
}

// Health is a best-effort liveness report. HealthCheck never fails, it
// always returns a status.
type Health struct {
	Status          string   `json:"status"`
	Error           string   `json:"error,omitempty"`
	SupportedModels []string `json:"supported_models,omitempty"`
}

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Adapter is the uniform contract over one LLM backend. SupportedModels and
// DefaultModel are populated by Initialize at startup and immutable
// afterward, so they are safe for concurrent reads.
type Adapter interface {
	Name() string
	SupportedModels() []string
	DefaultModel() string

	// Initialize populates the model list. Called once at server startup.
	Initialize(ctx context.Context) error

	// ResolveModel applies alias resolution and falls back to the default
	// model when no model is requested. Pure function, no I/O.
	ResolveModel(model string) string

	// Chat sends a single-shot completion and blocks for the full response
	Chat(ctx context.Context, req Request) (string, error)

	// ChatStream sends a completion and returns a single-pass sequence of
	// incremental text fragments. The channel closing signals completion.
	ChatStream(ctx context.Context, req Request) (<-chan Chunk, error)

	// HealthCheck probes backend liveness
	HealthCheck(ctx context.Context) Health
}

// Supports reports whether the adapter supports the given (already resolved)
// model
func Supports(a Adapter, model string) bool {
	return slices.Contains(a.SupportedModels(), model)
}
