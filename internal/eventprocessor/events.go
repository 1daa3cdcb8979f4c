// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package eventprocessor

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/ifauzeee/BipolTracker/internal/models"
)

// SchemaVersion is the payload version. Bump it on breaking changes.
const SchemaVersion = 1

// ZoneEventMessage is the bus payload for one zone transition.
type ZoneEventMessage struct {
	SchemaVersion int                  `json:"schema_version"`
	EventID       string               `json:"event_id"`
	VehicleID     string               `json:"vehicle_id"`
	ZoneID        string               `json:"zone_id"`
	ZoneName      string               `json:"zone_name"`
	EventType     models.ZoneEventType `json:"event_type"`
	Timestamp     time.Time            `json:"timestamp"`
}

// NewZoneEventMessage converts a detector event.
func NewZoneEventMessage(e models.ZoneEvent) ZoneEventMessage {
	return ZoneEventMessage{
		SchemaVersion: SchemaVersion,
		EventID:       e.ID,
		VehicleID:     e.VehicleID,
		ZoneID:        e.ZoneID,
		ZoneName:      e.ZoneName,
		EventType:     e.EventType,
		Timestamp:     e.Timestamp,
	}
}

// Validate checks required fields.
func (m ZoneEventMessage) Validate() error {
	if m.EventID == "" {
		return fmt.Errorf("zone event: missing event_id")
	}
	if m.VehicleID == "" {
		return fmt.Errorf("zone event %s: missing vehicle_id", m.EventID)
	}
	if m.EventType != models.ZoneEnter && m.EventType != models.ZoneExit {
		return fmt.Errorf("zone event %s: bad event_type %q", m.EventID, m.EventType)
	}
	return nil
}

// TelemetryMessage is the bus payload for one accepted sample.
type TelemetryMessage struct {
	SchemaVersion int `json:"schema_version"`
	models.EnrichedSample
}

// NewTelemetryMessage wraps an enriched sample.
func NewTelemetryMessage(s models.EnrichedSample) TelemetryMessage {
	return TelemetryMessage{SchemaVersion: SchemaVersion, EnrichedSample: s}
}

// Validate checks required fields.
func (m TelemetryMessage) Validate() error {
	if m.ServerID == "" || m.VehicleID == "" {
		return fmt.Errorf("telemetry: missing server_id or vehicle_id")
	}
	return nil
}

type validator interface {
	Validate() error
}

// Marshal validates and encodes a payload.
func Marshal(v validator) ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// UnmarshalZoneEvent decodes a zone event payload.
func UnmarshalZoneEvent(data []byte) (ZoneEventMessage, error) {
	var m ZoneEventMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return ZoneEventMessage{}, fmt.Errorf("unmarshal zone event: %w", err)
	}
	return m, nil
}

// UnmarshalTelemetry decodes a telemetry payload.
func UnmarshalTelemetry(data []byte) (TelemetryMessage, error) {
	var m TelemetryMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return TelemetryMessage{}, fmt.Errorf("unmarshal telemetry: %w", err)
	}
	return m, nil
}
