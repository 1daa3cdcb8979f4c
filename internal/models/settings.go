// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package models

import "time"

// Keys of the store-owned runtime settings.
const (
	SettingGasAlertThreshold     = "GAS_ALERT_THRESHOLD"
	SettingBusStopTimeoutMinutes = "BUS_STOP_TIMEOUT_MINUTES"
	SettingMinSpeedThreshold     = "UDP_MIN_SPEED_THRESHOLD"
)

// Settings is a snapshot of runtime configuration.
type Settings struct {
	GasAlertThreshold int       `json:"gas_alert_threshold"`
	StopTimeout       float64   `json:"bus_stop_timeout_minutes"`
	MinSpeedThreshold float64   `json:"udp_min_speed_threshold"`
	LoadedAt          time.Time `json:"loaded_at"`
}

// SettingRow is one persisted key/value pair.
type SettingRow struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PublicConfig is the subset of settings exposed to map clients.
type PublicConfig struct {
	GasAlertThreshold     int     `json:"gasAlertThreshold"`
	BusStopTimeoutMinutes float64 `json:"busStopTimeoutMinutes"`
}
