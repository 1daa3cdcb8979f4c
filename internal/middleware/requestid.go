// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package middleware

import (
	"context"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ifauzeee/BipolTracker/internal/logging"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 64

// RequestID keeps an upstream X-Request-ID when it looks sane, otherwise
// assigns a UUID. The id is echoed in the response, stored where
// logging.Ctx and chi's GetReqID find it, and paired with a fresh
// correlation id.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if requestID == "" || len(requestID) > maxRequestIDLength || strings.ContainsAny(requestID, "\r\n") {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)

		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		ctx = logging.ContextWithNewCorrelationID(ctx)
		ctx = context.WithValue(ctx, chimiddleware.RequestIDKey, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
