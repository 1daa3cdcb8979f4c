// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package geofence

import "math"

// earthRadiusM is the mean Earth radius used for great-circle distance.
const earthRadiusM = 6371000.0

// Distance returns the haversine great-circle distance in meters between two
// WGS84 coordinates given in degrees.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	const toRad = math.Pi / 180

	dLat := (lat2 - lat1) * toRad
	dLon := (lon2 - lon1) * toRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusM * c
}
