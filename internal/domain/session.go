package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of a session.
// Transitions are one-directional: active -> closed, active -> expired.
type SessionStatus string

const (
	StatusActive  SessionStatus = "active"
	StatusClosed  SessionStatus = "closed"
	StatusExpired SessionStatus = "expired"
)

// ContextFile is a named reference file injected into a session's context
type ContextFile struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// SessionContext is the optional initialization payload for a session.
// It is rendered into a system-prompt fragment and never mutated afterward.
type SessionContext struct {
	Memory          string        `json:"memory,omitempty"`
	PreviousSummary string        `json:"previous_summary,omitempty"`
	Files           []ContextFile `json:"files,omitempty"`
}

// ToSystemPrompt renders the context as a system-prompt fragment.
// Non-empty parts are titled and joined by blank lines; returns "" when
// nothing is present.
func (c *SessionContext) ToSystemPrompt() string {
	var parts []string

	if c.Memory != "" {
		parts = append(parts, "# Project Context\n"+c.Memory)
	}
	if c.PreviousSummary != "" {
		parts = append(parts, "# Previous Session Summary\n"+c.PreviousSummary)
	}
	if len(c.Files) > 0 {
		var files []string
		for _, f := range c.Files {
			if f.Name != "" && f.Content != "" {
				files = append(files, fmt.Sprintf("## %s\n%s", f.Name, f.Content))
			}
		}
		if len(files) > 0 {
			parts = append(parts, "# Reference Files\n"+strings.Join(files, "\n"))
		}
	}

	return strings.Join(parts, "\n\n")
}

// Session is a persisted, provider-bound multi-turn conversation with expiry.
// Provider is set once at creation and never changes; Messages only grows.
type Session struct {
	ID           string          `json:"id"`
	Provider     string          `json:"provider"`
	Model        string          `json:"model"`
	Status       SessionStatus   `json:"status"`
	SystemPrompt string          `json:"system_prompt,omitempty"`
	Context      *SessionContext `json:"context,omitempty"`
	Messages     []Message       `json:"messages"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
}

// NewSession creates an active session bound to the given provider and model
func NewSession(provider, model string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        uuid.New().String(),
		Provider:  provider,
		Model:     model,
		Status:    StatusActive,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddMessage appends a message to the transcript and bumps UpdatedAt
func (s *Session) AddMessage(msg Message) {
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now().UTC()
}

// AddUserMessage appends a user message to the transcript
func (s *Session) AddUserMessage(content string) Message {
	msg := NewUserMessage(content)
	s.AddMessage(msg)
	return msg
}

// AddAssistantMessage appends an assistant message to the transcript
func (s *Session) AddAssistantMessage(content string) Message {
	msg := NewAssistantMessage(content)
	s.AddMessage(msg)
	return msg
}

// EffectiveSystemPrompt combines the stored system prompt with the rendered
// context, system prompt first, joined by a blank line.
func (s *Session) EffectiveSystemPrompt() string {
	var parts []string

	if s.SystemPrompt != "" {
		parts = append(parts, s.SystemPrompt)
	}
	if s.Context != nil {
		if rendered := s.Context.ToSystemPrompt(); rendered != "" {
			parts = append(parts, rendered)
		}
	}

	return strings.Join(parts, "\n\n")
}

// IsActive reports whether the session is usable right now. Expiry is a
// function of wall-clock time, so this is re-evaluated on every call rather
// than cached.
func (s *Session) IsActive() bool {
	if s.Status != StatusActive {
		return false
	}
	if s.ExpiresAt != nil && time.Now().UTC().After(*s.ExpiresAt) {
		return false
	}
	return true
}

// Close transitions the session to closed and bumps UpdatedAt. Callers must
// not close an already-terminal session.
func (s *Session) Close() {
	s.Status = StatusClosed
	s.UpdatedAt = time.Now().UTC()
}
