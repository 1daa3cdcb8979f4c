// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/ifauzeee/BipolTracker/internal/cache"
	"github.com/ifauzeee/BipolTracker/internal/models"
	"github.com/ifauzeee/BipolTracker/internal/telemetry"
)

const (
	defaultLatestWindow = 20
	defaultEventsLimit  = 50
	maxEventsLimit      = 200
)

// BusLocations returns the most recent sample of each vehicle seen in the
// latest window of stored rows, most recent first.
func (h *Handler) BusLocations(w http.ResponseWriter, r *http.Request) {
	window := defaultLatestWindow
	if h.config != nil && h.config.Telemetry.LatestWindow > 0 {
		window = h.config.Telemetry.LatestWindow
	}

	v, err := h.cached(cache.KeyLatestLocations, func() (interface{}, error) {
		rows, err := h.store.LatestLocations(r.Context(), window)
		if err != nil {
			return nil, err
		}
		if rows == nil {
			rows = []models.EnrichedSample{}
		}
		return rows, nil
	})
	if err != nil {
		NewResponseWriter(w, r).InternalError("Failed to fetch locations", err)
		return
	}

	rows := v.([]models.EnrichedSample)
	NewResponseWriter(w, r).SuccessList(rows, len(rows))
}

// BusLocation returns the latest accepted sample of one vehicle from the
// cache. Vehicles that have not reported within the cache TTL are 404.
func (h *Handler) BusLocation(w http.ResponseWriter, r *http.Request) {
	param := chi.URLParam(r, "vehicleID")
	if unescaped, err := url.PathUnescape(param); err == nil {
		param = unescaped
	}
	id := telemetry.SanitizeID(param, telemetry.MaxVehicleIDLength)
	if id == "" {
		NewResponseWriter(w, r).BadRequest("vehicleID is required")
		return
	}

	v, ok := h.cache.Get(cache.VehicleKey(id))
	if !ok {
		NewResponseWriter(w, r).NotFound("No recent location for vehicle " + id)
		return
	}
	NewResponseWriter(w, r).Success(v)
}

// Geofences lists the configured zones in load order.
func (h *Handler) Geofences(w http.ResponseWriter, r *http.Request) {
	v, err := h.cached(cache.KeyGeofences, func() (interface{}, error) {
		zones, err := h.store.ListZones(r.Context())
		if err != nil {
			return nil, err
		}
		if zones == nil {
			zones = []models.Zone{}
		}
		return zones, nil
	})
	if err != nil {
		NewResponseWriter(w, r).InternalError("Failed to fetch geofences", err)
		return
	}

	zones := v.([]models.Zone)
	NewResponseWriter(w, r).SuccessList(zones, len(zones))
}

// GeofenceEvents returns recent zone transitions, newest first. The cache
// holds the largest page; smaller limits are cut from it.
func (h *Handler) GeofenceEvents(w http.ResponseWriter, r *http.Request) {
	def := defaultEventsLimit
	if h.config != nil && h.config.Telemetry.EventsLimit > 0 && h.config.Telemetry.EventsLimit <= maxEventsLimit {
		def = h.config.Telemetry.EventsLimit
	}
	limit := getIntParam(r, "limit", def, 1, maxEventsLimit)

	v, err := h.cached(cache.KeyGeofenceEvents, func() (interface{}, error) {
		events, err := h.store.RecentZoneEvents(r.Context(), maxEventsLimit)
		if err != nil {
			return nil, err
		}
		if events == nil {
			events = []models.ZoneEvent{}
		}
		return events, nil
	})
	if err != nil {
		NewResponseWriter(w, r).InternalError("Failed to fetch geofence events", err)
		return
	}

	events := v.([]models.ZoneEvent)
	if len(events) > limit {
		events = events[:limit]
	}
	NewResponseWriter(w, r).SuccessList(events, len(events))
}

// PublicConfig returns the settings map clients need.
func (h *Handler) PublicConfig(w http.ResponseWriter, r *http.Request) {
	v, _ := h.cached(cache.KeyPublicConfig, func() (interface{}, error) {
		return h.settings.PublicConfig(), nil
	})
	NewResponseWriter(w, r).Success(v)
}
