package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/okabe-d/llm-hub/internal/domain"
	"github.com/okabe-d/llm-hub/internal/provider"
)

// CompressionLevel is the requested compression tier for a memory export
type CompressionLevel string

const (
	CompressionNone   CompressionLevel = "none"
	CompressionLow    CompressionLevel = "low"
	CompressionMedium CompressionLevel = "medium"
	CompressionHigh   CompressionLevel = "high"
)

// compressionTargets describes the digest size asked of the provider per tier
var compressionTargets = map[CompressionLevel]string{
	CompressionLow:    "a detailed summary, keeping all decisions, code references and open questions",
	CompressionMedium: "a concise summary of roughly 10-15 sentences covering the key points and decisions",
	CompressionHigh:   "a minimal summary of at most 5 sentences capturing only the essential outcome",
}

// MemoryService turns session transcripts into compressed digests and
// drives the close-with-memory flow
type MemoryService struct {
	sessions  *SessionService
	providers map[string]provider.Adapter
	timeout   time.Duration
}

// NewMemoryService creates a memory service
func NewMemoryService(sessions *SessionService, providers map[string]provider.Adapter, timeout time.Duration) *MemoryService {
	return &MemoryService{
		sessions:  sessions,
		providers: providers,
		timeout:   timeout,
	}
}

// MemoryExport is the result of exporting a session's memory
type MemoryExport struct {
	SessionID        string         `json:"session_id"`
	Compression      string         `json:"compression"`
	Format           string         `json:"format"`
	Content          string         `json:"content,omitempty"`
	CompressedMemory string         `json:"compressed_memory,omitempty"`
	Metadata         map[string]any `json:"metadata"`
}

// ExportMemory formats a session transcript, optionally compressing it
// through the named provider at the requested tier
func (m *MemoryService) ExportMemory(ctx context.Context, sessionID string, level CompressionLevel, providerName, format string) (*MemoryExport, error) {
	session, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	export := &MemoryExport{
		SessionID:   session.ID,
		Compression: string(level),
		Format:      format,
		Metadata: map[string]any{
			"provider":      session.Provider,
			"model":         session.Model,
			"message_count": len(session.Messages),
			"created_at":    session.CreatedAt,
		},
	}

	if level == CompressionNone {
		content, err := formatTranscript(session, format)
		if err != nil {
			return nil, err
		}
		export.Content = content
		return export, nil
	}

	digest, err := m.compress(ctx, session, level, providerName)
	if err != nil {
		return nil, err
	}
	export.CompressedMemory = digest
	return export, nil
}

// CloseResult is the outcome of closing a session with memory production
type CloseResult struct {
	Success          bool   `json:"success"`
	SessionID        string `json:"session_id"`
	Status           string `json:"status"`
	CompressedMemory string `json:"compressed_memory,omitempty"`
}

// CloseSessionWithMemory produces a digest of the session and then
// transitions it to closed. The digest is produced first so the transcript
// is still readable through an active session.
func (m *MemoryService) CloseSessionWithMemory(ctx context.Context, sessionID string, level CompressionLevel, providerName string) (*CloseResult, error) {
	session, err := m.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var digest string
	if level != CompressionNone && len(session.Messages) > 0 {
		digest, err = m.compress(ctx, session, level, providerName)
		if err != nil {
			return nil, err
		}
	}

	session.Close()
	if _, err := m.sessions.UpdateSession(ctx, session); err != nil {
		return nil, err
	}

	log.Info().Str("session_id", session.ID).Str("compression", string(level)).Msg("closed session with memory")

	return &CloseResult{
		Success:          true,
		SessionID:        session.ID,
		Status:           string(session.Status),
		CompressedMemory: digest,
	}, nil
}

// compress asks a provider to digest the transcript at the given tier
func (m *MemoryService) compress(ctx context.Context, session *domain.Session, level CompressionLevel, providerName string) (string, error) {
	if providerName == "" {
		providerName = session.Provider
	}

	adapter, ok := m.providers[providerName]
	if !ok {
		return "", domain.NewUnknownProvider(providerName)
	}

	transcript, err := formatTranscript(session, "markdown")
	if err != nil {
		return "", err
	}

	target, ok := compressionTargets[level]
	if !ok {
		target = compressionTargets[CompressionMedium]
	}

	prompt := fmt.Sprintf(
		"Compress the following conversation transcript into %s. Preserve factual accuracy; do not invent content.\n\n%s",
		target, transcript,
	)

	return adapter.Chat(ctx, provider.Request{
		Prompt:  prompt,
		Timeout: m.timeout,
	})
}

// formatTranscript renders a session transcript as markdown or JSON
func formatTranscript(session *domain.Session, format string) (string, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(session.Messages, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal transcript: %w", err)
		}
		return string(data), nil
	case "", "markdown":
		var b strings.Builder
		fmt.Fprintf(&b, "# Session %s\n\nProvider: %s, model: %s\n", session.ID, session.Provider, session.Model)
		for _, msg := range session.Messages {
			fmt.Fprintf(&b, "\n## %s\n\n%s\n", msg.Role, msg.Content)
		}
		return b.String(), nil
	default:
		return "", fmt.Errorf("unsupported transcript format: %s", format)
	}
}
