// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	requestIDKey     contextKey = "request_id"
)

// GenerateCorrelationID returns a short id used to tie together log lines of
// one unit of work (a request or a datagram).
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// GenerateRequestID returns a full UUID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithCorrelationID stores a correlation id in ctx.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID stores a freshly generated correlation id in ctx.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext returns the stored correlation id or "".
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID stores an HTTP request id in ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the stored request id or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns the global logger enriched with the ids carried by ctx.
//
//	logging.Ctx(r.Context()).Info().Msg("Zone created")
func Ctx(ctx context.Context) *zerolog.Logger {
	l := CtxWith(ctx).Logger()
	return &l
}

// CtxWith is like Ctx but leaves the context open for more fields.
func CtxWith(ctx context.Context) zerolog.Context {
	c := With()
	if id := CorrelationIDFromContext(ctx); id != "" {
		c = c.Str("correlation_id", id)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		c = c.Str("request_id", id)
	}
	return c
}
