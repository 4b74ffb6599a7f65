// Package response provides the JSON response envelope shared by all
// handlers and the mapping from the domain error taxonomy onto HTTP status
// codes.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okabe-d/llm-hub/internal/domain"
)

// Response represents a standard API response
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Error   any  `json:"error,omitempty"`
}

// JSON sends a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(Response{
		Success: status >= 200 && status < 300,
		Data:    data,
	})
}

// Error sends an error response
func Error(w http.ResponseWriter, status int, message any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(Response{
		Success: false,
		Error:   message,
	})
}

// OK sends a 200 OK response with data
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created sends a 201 Created response with data
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// BadRequest sends a 400 Bad Request response
func BadRequest(w http.ResponseWriter, message any) {
	Error(w, http.StatusBadRequest, message)
}

// DomainError sends an error response for a domain error, mapping its code
// to the matching HTTP status
func DomainError(w http.ResponseWriter, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		Error(w, StatusFromCode(de.Code), de)
		return
	}

	Error(w, http.StatusInternalServerError, map[string]any{
		"code":    domain.CodeInternal,
		"message": err.Error(),
	})
}

// StatusFromCode maps a domain error code onto an HTTP status
func StatusFromCode(code domain.ErrorCode) int {
	switch code {
	case domain.CodeProviderMismatch, domain.CodeInvalidModel, domain.CodeUnknownProvider:
		return http.StatusBadRequest
	case domain.CodeSessionNotFound:
		return http.StatusNotFound
	case domain.CodeSessionExpired:
		return http.StatusGone
	case domain.CodeProviderError:
		return http.StatusBadGateway
	case domain.CodeProviderTimeout:
		return http.StatusGatewayTimeout
	case domain.CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
