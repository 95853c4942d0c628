// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2026 askings-go Authors

// Package api provides common HTTP API utilities including error handling.
package api

import (
	"encoding/json"
	"net/http"
)

// Deterministic reason codes for stable error classification.
// These codes should remain stable across versions for client compatibility.
const (
	// Authentication and authorization
	ReasonUnauthenticated    = "unauthenticated"
	ReasonInvalidToken       = "invalid_token"
	ReasonForbidden          = "forbidden"
	ReasonNotMentor          = "not_mentor"
	ReasonInvalidCredentials = "invalid_credentials"

	// Rate limiting
	ReasonRateLimited = "rate_limited"

	// Request validation
	ReasonBadRequest       = "bad_request"
	ReasonMissingField     = "missing_field"
	ReasonInvalidField     = "invalid_field"
	ReasonNotFound         = "not_found"
	ReasonEmptyResult      = "empty_result"
	ReasonMethodNotAllowed = "method_not_allowed"

	// Server errors
	ReasonInternalError    = "internal_error"
	ReasonPersistenceError = "persistence_error"
)

// ErrorEnvelope is the standard error response format.
// Msg duplicates the human message at the top level for older clients that read "msg".
type ErrorEnvelope struct {
	Msg   string      `json:"msg"`
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code       string `json:"code"`             // HTTP status text (e.g., "Forbidden")
	ReasonCode string `json:"reason_code"`      // Deterministic reason code
	Message    string `json:"message"`          // Human-readable message
	Detail     string `json:"detail,omitempty"` // Underlying cause, when safe to expose
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes a standardized JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, reasonCode, message string) {
	WriteErrorDetail(w, statusCode, reasonCode, message, "")
}

// WriteErrorDetail is WriteError with an extra detail string.
func WriteErrorDetail(w http.ResponseWriter, statusCode int, reasonCode, message, detail string) {
	WriteJSON(w, statusCode, ErrorEnvelope{
		Msg: message,
		Error: ErrorDetail{
			Code:       http.StatusText(statusCode),
			ReasonCode: reasonCode,
			Message:    message,
			Detail:     detail,
		},
	})
}

// WriteUnauthorized writes a 401 Unauthorized error.
func WriteUnauthorized(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusUnauthorized, reasonCode, message)
}

// WriteForbidden writes a 403 Forbidden error.
func WriteForbidden(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusForbidden, reasonCode, message)
}

// WriteNotFound writes a 404 Not Found error.
func WriteNotFound(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusNotFound, reasonCode, message)
}

// WriteBadRequest writes a 400 Bad Request error.
func WriteBadRequest(w http.ResponseWriter, reasonCode, message string) {
	WriteError(w, http.StatusBadRequest, reasonCode, message)
}

// WriteTooManyRequests writes a 429 Too Many Requests error.
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, ReasonRateLimited, message)
}

// WriteInternalError writes a 500 Internal Server Error.
// detail is included verbatim, so pass only errors safe to show clients.
func WriteInternalError(w http.ResponseWriter, reasonCode, message, detail string) {
	WriteErrorDetail(w, http.StatusInternalServerError, reasonCode, message, detail)
}
