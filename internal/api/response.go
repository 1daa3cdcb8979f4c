// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/validation"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *APIMeta    `json:"meta,omitempty"`
}

// APIError represents an error response.
type APIError struct {
	// Code is a machine-readable error code
	Code string `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Count      *int      `json:"count,omitempty"`
}

// Error codes for API responses
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeValidationFailed   = validation.CodeValidationFailed
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// ResponseWriter provides methods for writing standardized API responses.
type ResponseWriter struct {
	w         http.ResponseWriter
	r         *http.Request
	startTime time.Time
}

// NewResponseWriter creates a new response writer.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{
		w:         w,
		r:         r,
		startTime: time.Now(),
	}
}

func (rw *ResponseWriter) meta() *APIMeta {
	return &APIMeta{
		RequestID:  logging.RequestIDFromContext(rw.r.Context()),
		Timestamp:  time.Now(),
		DurationMs: time.Since(rw.startTime).Milliseconds(),
	}
}

// Success writes a 200 response with data.
func (rw *ResponseWriter) Success(data interface{}) {
	rw.writeJSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: rw.meta()})
}

// SuccessList writes a 200 response and records the item count in meta.
func (rw *ResponseWriter) SuccessList(data interface{}, count int) {
	meta := rw.meta()
	meta.Count = &count
	rw.writeJSON(http.StatusOK, APIResponse{Success: true, Data: data, Meta: meta})
}

// Created writes a 201 Created response.
func (rw *ResponseWriter) Created(data interface{}) {
	rw.writeJSON(http.StatusCreated, APIResponse{Success: true, Data: data, Meta: rw.meta()})
}

// Error writes an error response with the given status code.
func (rw *ResponseWriter) Error(statusCode int, code, message string) {
	rw.ErrorWithDetails(statusCode, code, message, nil)
}

// ErrorWithDetails writes an error response with additional details.
func (rw *ResponseWriter) ErrorWithDetails(statusCode int, code, message string, details interface{}) {
	meta := rw.meta()
	rw.writeJSON(statusCode, APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: meta.RequestID,
		},
		Meta: meta,
	})
}

// BadRequest writes a 400 Bad Request error.
func (rw *ResponseWriter) BadRequest(message string) {
	rw.Error(http.StatusBadRequest, ErrCodeBadRequest, message)
}

// ValidationError writes a 400 error with field details.
func (rw *ResponseWriter) ValidationError(message string, details interface{}) {
	rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, message, details)
}

// RequestValidation writes the result of validation.ValidateStruct.
func (rw *ResponseWriter) RequestValidation(err *validation.RequestValidationError) {
	apiErr := err.ToAPIError()
	rw.ErrorWithDetails(http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
}

// Unauthorized writes a 401 Unauthorized error.
func (rw *ResponseWriter) Unauthorized(message string) {
	rw.Error(http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// Forbidden writes a 403 Forbidden error.
func (rw *ResponseWriter) Forbidden(message string) {
	rw.Error(http.StatusForbidden, ErrCodeForbidden, message)
}

// NotFound writes a 404 Not Found error.
func (rw *ResponseWriter) NotFound(message string) {
	rw.Error(http.StatusNotFound, ErrCodeNotFound, message)
}

// TooManyRequests writes a 429 error carrying the retry hint.
func (rw *ResponseWriter) TooManyRequests(limit, retryAfterSeconds int) {
	rw.ErrorWithDetails(http.StatusTooManyRequests, ErrCodeTooManyRequests,
		"Too many requests, please try again later",
		map[string]interface{}{"limit": limit, "retry_after": retryAfterSeconds})
}

// InternalError logs err and writes a 500 without leaking it.
func (rw *ResponseWriter) InternalError(message string, err error) {
	if err != nil {
		logging.Ctx(rw.r.Context()).Error().Err(err).Str("path", rw.r.URL.Path).Msg(message)
	}
	rw.Error(http.StatusInternalServerError, ErrCodeInternalError, message)
}

// ServiceUnavailable writes a 503 Service Unavailable error.
func (rw *ResponseWriter) ServiceUnavailable(message string) {
	rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, message)
}

// writeJSON writes JSON response with proper headers.
func (rw *ResponseWriter) writeJSON(statusCode int, data interface{}) {
	rw.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.w.WriteHeader(statusCode)

	if err := json.NewEncoder(rw.w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteError is a convenience function for writing error responses.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	NewResponseWriter(w, r).Error(statusCode, code, message)
}

// denyAdmin renders auth guard rejections in the envelope.
func denyAdmin(w http.ResponseWriter, r *http.Request, status int, message string) {
	code := ErrCodeUnauthorized
	if status == http.StatusForbidden {
		code = ErrCodeForbidden
	}
	WriteError(w, r, status, code, message)
}
