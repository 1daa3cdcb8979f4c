// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ifauzeee/BipolTracker/internal/auth"
	"github.com/ifauzeee/BipolTracker/internal/cache"
	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/models"
	"github.com/ifauzeee/BipolTracker/internal/settings"
	"github.com/ifauzeee/BipolTracker/internal/validation"
)

// actor names the admin behind a request for the audit log line.
func actor(r *http.Request) string {
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok && claims.Subject != "" {
		return claims.Subject
	}
	return "anonymous"
}

// AdminSettings returns the current runtime settings.
func (h *Handler) AdminSettings(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.settings.Current())
}

// UpdateSettings validates and applies a partial settings update. Nothing
// is written when any key or value is rejected.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req settingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.RequestValidation(verr)
		return
	}

	updated, err := h.settings.Update(r.Context(), req.updates())
	switch {
	case errors.Is(err, settings.ErrUnknownKey), errors.Is(err, settings.ErrInvalidValue):
		rw.ValidationError(err.Error(), nil)
		return
	case err != nil:
		rw.InternalError("Failed to save settings", err)
		return
	}

	h.cache.Delete(cache.KeyPublicConfig)
	logging.Ctx(r.Context()).Info().Str("actor", actor(r)).Int("keys", len(req.Settings)).Msg("settings changed")
	rw.Success(updated)
}

// CreateGeofence adds a zone and reloads the detector.
func (h *Handler) CreateGeofence(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req zoneRequest
	if err := decodeJSON(w, r, &req); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.RequestValidation(verr)
		return
	}
	if field, bound, ok := h.outOfBounds(*req.Latitude, *req.Longitude); ok {
		rw.ValidationError(fmt.Sprintf("%s must be within [-%g, %g]", field, bound, bound),
			map[string]interface{}{"field": field})
		return
	}

	zone := models.Zone{
		ID:        h.newID(),
		Name:      strings.TrimSpace(req.Name),
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		RadiusM:   req.Radius,
		CreatedAt: h.now().UTC(),
	}
	if err := h.store.CreateZone(r.Context(), zone); err != nil {
		rw.InternalError("Failed to create geofence", err)
		return
	}

	h.zonesChanged()
	logging.Ctx(r.Context()).Info().Str("actor", actor(r)).Str("zone_id", zone.ID).Str("zone", zone.Name).Msg("geofence created")
	rw.Created(zone)
}

// DeleteGeofence removes a zone and reloads the detector.
func (h *Handler) DeleteGeofence(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		rw.BadRequest("id is required")
		return
	}

	deleted, err := h.store.DeleteZone(r.Context(), id)
	if err != nil {
		rw.InternalError("Failed to delete geofence", err)
		return
	}
	if !deleted {
		rw.NotFound("Geofence not found")
		return
	}

	h.zonesChanged()
	logging.Ctx(r.Context()).Info().Str("actor", actor(r)).Str("zone_id", sanitizeLogValue(id)).Msg("geofence deleted")
	rw.Success(map[string]interface{}{"id": id, "deleted": true})
}

func (h *Handler) zonesChanged() {
	h.cache.Delete(cache.KeyGeofences)
	if h.zones != nil {
		h.zones.Trigger()
	}
}

// outOfBounds applies the configured coordinate bounds.
func (h *Handler) outOfBounds(lat, lon float64) (field string, bound float64, bad bool) {
	latBound, lonBound := 180.0, 180.0
	if h.config != nil {
		if h.config.Telemetry.LatitudeBound > 0 {
			latBound = h.config.Telemetry.LatitudeBound
		}
		if h.config.Telemetry.LongitudeBound > 0 {
			lonBound = h.config.Telemetry.LongitudeBound
		}
	}
	if math.Abs(lat) > latBound {
		return "latitude", latBound, true
	}
	if math.Abs(lon) > lonBound {
		return "longitude", lonBound, true
	}
	return "", 0, false
}
