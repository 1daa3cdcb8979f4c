// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

// Package cache provides the short-lived read cache that sits in front of
// store queries.
package cache

// Cacher is the subset of Cache used by HTTP handlers and the pipeline.
type Cacher interface {
	// Get returns the value only while it is younger than the TTL.
	Get(key string) (interface{}, bool)

	// Set stores value and restarts its TTL.
	Set(key string, value interface{})

	// Delete drops a key. Writers call it after mutating the data a key
	// was computed from.
	Delete(key string)
}

// Keys of cached read aggregates.
const (
	KeyLatestLocations = "latest_locations"
	KeyGeofences       = "geofences"
	KeyGeofenceEvents  = "geofence_events"
	KeyPublicConfig    = "public_config"
)

// VehicleKey is the key of the most recent sample of one vehicle.
func VehicleKey(vehicleID string) string {
	return "bus_" + vehicleID
}

// DeleteOnWrite returns a store writer hook that deletes keys each time a
// write of the given kind has been persisted.
func DeleteOnWrite(c Cacher, kind string, keys ...string) func(written string) {
	return func(written string) {
		if written != kind {
			return
		}
		for _, k := range keys {
			c.Delete(k)
		}
	}
}
