// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

/*
schema.go - Store Schema

Tables:
  - telemetry_samples: one row per accepted sample, id is the server-assigned
    server_id. Aged out by the retention reaper.
  - zones: circular geofences, ordered by creation for first-match resolution.
  - zone_events: ENTER/EXIT history with the zone name captured at emission.
  - app_settings: runtime key/value settings.

The DDL is valid for both DuckDB and postgres.
*/

//nolint:staticcheck // File documentation, not package doc
package store

import (
	"context"
	"fmt"
	"time"
)

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) createTables(ctx context.Context) error {
	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS telemetry_samples (
			id TEXT PRIMARY KEY,
			vehicle_id TEXT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			speed DOUBLE PRECISION NOT NULL,
			gas_level INTEGER NOT NULL,
			occupancy TEXT NOT NULL DEFAULT '',
			transport TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_telemetry_samples_created_at ON telemetry_samples (created_at)`,

		`CREATE TABLE IF NOT EXISTS zones (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			radius_m DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS zone_events (
			id TEXT PRIMARY KEY,
			vehicle_id TEXT NOT NULL,
			zone_id TEXT NOT NULL,
			zone_name TEXT NOT NULL,
			event_type TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_zone_events_created_at ON zone_events (created_at)`,

		`CREATE TABLE IF NOT EXISTS app_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
}
