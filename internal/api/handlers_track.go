// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package api

import (
	"errors"
	"net/http"

	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/metrics"
	"github.com/ifauzeee/BipolTracker/internal/models"
	"github.com/ifauzeee/BipolTracker/internal/telemetry"
	"github.com/ifauzeee/BipolTracker/internal/validation"
)

// trackResponse acknowledges an accepted sample.
type trackResponse struct {
	ServerID  string              `json:"server_id"`
	VehicleID string              `json:"vehicle_id"`
	Status    models.MotionStatus `json:"status"`
	GasAlert  bool                `json:"gas_alert"`
	Events    int                 `json:"events"`
}

// Track accepts one telemetry sample over HTTP.
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req trackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		metrics.TelemetrySamples.WithLabelValues(string(models.TransportHTTP), "malformed").Inc()
		rw.BadRequest("Invalid JSON body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		metrics.TelemetrySamples.WithLabelValues(string(models.TransportHTTP), "malformed").Inc()
		rw.RequestValidation(verr)
		return
	}

	res, err := h.pipeline.Process(req.raw())
	if err != nil {
		writeRejection(rw, err)
		return
	}

	if !res.Queued {
		// Subscribers already have the sample; only persistence was refused.
		logging.Ctx(r.Context()).Warn().Str("vehicle_id", res.Sample.VehicleID).Msg("sample not queued for storage")
		rw.ServiceUnavailable("Storage is unavailable, sample was not saved")
		return
	}

	rw.Success(trackResponse{
		ServerID:  res.Sample.ServerID,
		VehicleID: res.Sample.VehicleID,
		Status:    res.Sample.Status,
		GasAlert:  res.Sample.GasAlert,
		Events:    len(res.Events),
	})
}

func writeRejection(rw *ResponseWriter, err error) {
	var verr *telemetry.ValidationError
	switch {
	case errors.Is(err, telemetry.ErrMissingVehicleID):
		rw.BadRequest("bus_id or vehicle_id is required")
	case errors.As(err, &verr):
		rw.ValidationError(verr.Field+" "+verr.Reason, map[string]interface{}{
			"field":  verr.Field,
			"reason": verr.Reason,
		})
	default:
		rw.InternalError("Failed to process sample", err)
	}
}
