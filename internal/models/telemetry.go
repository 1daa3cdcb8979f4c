// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

// Package models holds the data types shared by the ingestion pipeline,
// the store adapter, and the HTTP and websocket surfaces.
package models

import "time"

// Transport identifies which gateway accepted a sample.
type Transport string

const (
	TransportUDP  Transport = "udp"
	TransportHTTP Transport = "http"
)

// RawSample is an inbound sample before validation. Numeric fields stay as
// text so the normalizer decides what parses.
type RawSample struct {
	VehicleID string
	Latitude  string
	Longitude string
	Speed     string
	GasLevel  string
	Occupancy string
	Transport Transport
}

// TelemetrySample is a validated, normalized reading. Immutable once built.
type TelemetrySample struct {
	VehicleID string    `json:"vehicle_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Speed     float64   `json:"speed"`
	GasLevel  int       `json:"gas_level"`
	Occupancy string    `json:"occupancy,omitempty"`
	Transport Transport `json:"transport"`
}

// MotionStatus is the derived movement classification of a vehicle.
type MotionStatus string

const (
	StatusMoving  MotionStatus = "MOVING"
	StatusStopped MotionStatus = "STOPPED"
	StatusParked  MotionStatus = "PARKED"
)

// EnrichedSample is what subscribers receive on the telemetry channel and
// what the store persists.
type EnrichedSample struct {
	ServerID  string       `json:"server_id"`
	VehicleID string       `json:"vehicle_id"`
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	Speed     float64      `json:"speed"`
	GasLevel  int          `json:"gas_level"`
	Occupancy string       `json:"occupancy,omitempty"`
	Transport Transport    `json:"transport"`
	Status    MotionStatus `json:"status,omitempty"`
	GasAlert  bool         `json:"gas_alert"`
	CreatedAt time.Time    `json:"created_at"`
}

// Enrich attaches server-assigned identity and timing to a normalized sample.
func Enrich(s TelemetrySample, serverID string, at time.Time) EnrichedSample {
	return EnrichedSample{
		ServerID:  serverID,
		VehicleID: s.VehicleID,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Speed:     s.Speed,
		GasLevel:  s.GasLevel,
		Occupancy: s.Occupancy,
		Transport: s.Transport,
		CreatedAt: at,
	}
}
