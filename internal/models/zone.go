// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package models

import "time"

// Zone is a circular geofence.
type Zone struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	RadiusM   float64   `json:"radius"`
	CreatedAt time.Time `json:"created_at"`
}

// ZoneEventType is ENTER or EXIT.
type ZoneEventType string

const (
	ZoneEnter ZoneEventType = "ENTER"
	ZoneExit  ZoneEventType = "EXIT"
)

// ZoneEvent records a change of a vehicle's zone membership.
type ZoneEvent struct {
	ID        string        `json:"id"`
	VehicleID string        `json:"vehicle_id"`
	ZoneID    string        `json:"zone_id"`
	ZoneName  string        `json:"zone_name"`
	EventType ZoneEventType `json:"event_type"`
	Timestamp time.Time     `json:"timestamp"`
}
