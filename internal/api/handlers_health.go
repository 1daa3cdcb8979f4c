// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package api

import (
	"context"
	"net/http"
	"time"
)

const readinessTimeout = 2 * time.Second

// HealthLive returns 200 while the process is up, regardless of
// dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady returns 200 only when the store answers a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		NewResponseWriter(w, r).ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"Service not ready", map[string]interface{}{"database": "unreachable"})
		return
	}

	clients := 0
	if h.wsHub != nil {
		clients = h.wsHub.GetClientCount()
	}
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"ready":             true,
		"database":          "ok",
		"websocket_clients": clients,
		"uptime":            time.Since(h.startTime).Seconds(),
	})
}
