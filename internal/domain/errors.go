package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode identifies an error condition across the API boundary.
// Codes are stable; transports map them onto their own status codes.
type ErrorCode string

const (
	CodeProviderError      ErrorCode = "PROVIDER_ERROR"
	CodeProviderTimeout    ErrorCode = "PROVIDER_TIMEOUT"
	CodeInvalidModel       ErrorCode = "INVALID_MODEL"
	CodeUnknownProvider    ErrorCode = "UNKNOWN_PROVIDER"
	CodeSessionNotFound    ErrorCode = "SESSION_NOT_FOUND"
	CodeSessionExpired     ErrorCode = "SESSION_EXPIRED"
	CodeProviderMismatch   ErrorCode = "PROVIDER_MISMATCH"
	CodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	CodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// Error carries a stable code, a human-readable message and optional
// structured detail for caller-side presentation.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// CodeOf extracts the error code from err, or CodeInternal for untyped errors
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// NewProviderError reports a backend that returned non-success or malformed output
func NewProviderError(provider, message string) *Error {
	return &Error{
		Code:    CodeProviderError,
		Message: message,
		Details: map[string]any{"provider": provider},
	}
}

// NewProviderTimeout reports a provider call that exceeded its allotted time
func NewProviderTimeout(provider string, timeout time.Duration) *Error {
	return &Error{
		Code:    CodeProviderTimeout,
		Message: fmt.Sprintf("provider %q timed out after %s", provider, timeout),
		Details: map[string]any{"provider": provider, "timeout_seconds": timeout.Seconds()},
	}
}

// NewInvalidModel reports a resolved model outside the provider's supported set
func NewInvalidModel(model, provider string, supported []string) *Error {
	return &Error{
		Code:    CodeInvalidModel,
		Message: fmt.Sprintf("unsupported model: %s", model),
		Details: map[string]any{
			"requested_model":  model,
			"provider":         provider,
			"supported_models": supported,
		},
	}
}

// NewUnknownProvider reports a provider name that is not configured
func NewUnknownProvider(name string) *Error {
	return &Error{
		Code:    CodeUnknownProvider,
		Message: fmt.Sprintf("unknown provider: %s", name),
		Details: map[string]any{"provider": name},
	}
}

// NewSessionNotFound reports a session id that was never created or was evicted
func NewSessionNotFound(sessionID string) *Error {
	return &Error{
		Code:    CodeSessionNotFound,
		Message: fmt.Sprintf("session not found: %s", sessionID),
		Details: map[string]any{"session_id": sessionID},
	}
}

// NewSessionExpired reports a session that exists but is no longer active
func NewSessionExpired(sessionID string) *Error {
	return &Error{
		Code:    CodeSessionExpired,
		Message: fmt.Sprintf("session expired: %s", sessionID),
		Details: map[string]any{"session_id": sessionID},
	}
}

// NewProviderMismatch reports a requested provider conflicting with the
// session's bound provider
func NewProviderMismatch(sessionProvider, requestedProvider string) *Error {
	return &Error{
		Code:    CodeProviderMismatch,
		Message: fmt.Sprintf("session uses %q provider, cannot use %q", sessionProvider, requestedProvider),
		Details: map[string]any{
			"session_provider":   sessionProvider,
			"requested_provider": requestedProvider,
		},
	}
}

// NewStorageUnavailable reports that the session store backend cannot be reached
func NewStorageUnavailable(err error) *Error {
	return &Error{
		Code:    CodeStorageUnavailable,
		Message: fmt.Sprintf("session store unavailable: %v", err),
		cause:   err,
	}
}
