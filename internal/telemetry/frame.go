// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package telemetry

import (
	"bytes"
	"strings"

	"github.com/ifauzeee/BipolTracker/internal/models"
)

const (
	frameFields = 5

	// MaxFrameBytes is the largest datagram payload considered.
	MaxFrameBytes = 512
)

// ParseFrame splits a datagram of the form
//
//	vehicle_id,latitude,longitude,speed,gas_level[,extra...]
//
// into a RawSample. Extra fields are ignored. Value checks are left to
// Normalize.
func ParseFrame(payload []byte) (models.RawSample, error) {
	if len(payload) == 0 || len(payload) > MaxFrameBytes {
		return models.RawSample{}, ErrMalformedFrame
	}
	parts := strings.Split(string(bytes.TrimSpace(payload)), ",")
	if len(parts) < frameFields {
		return models.RawSample{}, ErrMalformedFrame
	}
	return models.RawSample{
		VehicleID: parts[0],
		Latitude:  parts[1],
		Longitude: parts[2],
		Speed:     parts[3],
		GasLevel:  parts[4],
		Transport: models.TransportUDP,
	}, nil
}

// FromSample renders a normalized sample back into raw form. Normalize of
// the result reproduces the sample when the thresholds are unchanged.
func FromSample(s models.TelemetrySample) models.RawSample {
	return models.RawSample{
		VehicleID: s.VehicleID,
		Latitude:  formatFloat(s.Latitude),
		Longitude: formatFloat(s.Longitude),
		Speed:     formatFloat(s.Speed),
		GasLevel:  formatInt(s.GasLevel),
		Occupancy: s.Occupancy,
		Transport: s.Transport,
	}
}
