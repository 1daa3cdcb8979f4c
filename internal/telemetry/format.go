// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package telemetry

import "strconv"

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatInt(v int) string {
	return strconv.Itoa(v)
}

// LegacyFrame builds the three-field frame the legacy tracker listener
// accepts.
func LegacyFrame(legacyID string, lat, lon float64) []byte {
	b := make([]byte, 0, len(legacyID)+32)
	b = append(b, legacyID...)
	b = append(b, ',')
	b = strconv.AppendFloat(b, lat, 'f', -1, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, lon, 'f', -1, 64)
	return b
}
