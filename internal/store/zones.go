// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ifauzeee/BipolTracker/internal/models"
)

// ListZones returns every zone in first-match order: creation time, then id.
func (db *DB) ListZones(ctx context.Context) (zones []models.Zone, err error) {
	defer observe("list_zones", time.Now(), &err)

	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, latitude, longitude, radius_m, created_at FROM zones ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query zones: %w", err)
	}
	defer rows.Close()

	zones = []models.Zone{}
	for rows.Next() {
		var z models.Zone
		if err = rows.Scan(&z.ID, &z.Name, &z.Latitude, &z.Longitude, &z.RadiusM, &z.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan zone: %w", err)
		}
		z.CreatedAt = z.CreatedAt.UTC()
		zones = append(zones, z)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate zones: %w", err)
	}
	return zones, nil
}

// CreateZone inserts a zone. The caller assigns ID and CreatedAt.
func (db *DB) CreateZone(ctx context.Context, z models.Zone) (err error) {
	defer observe("create_zone", time.Now(), &err)

	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO zones (id, name, latitude, longitude, radius_m, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		z.ID, z.Name, z.Latitude, z.Longitude, z.RadiusM, z.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert zone %s: %w", z.ID, err)
	}
	return nil
}

// DeleteZone removes a zone. It reports false when no zone had that id.
// Past zone events keep their recorded zone name.
func (db *DB) DeleteZone(ctx context.Context, id string) (deleted bool, err error) {
	defer observe("delete_zone", time.Now(), &err)

	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM zones WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete zone %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// InsertZoneEvent persists one transition.
func (db *DB) InsertZoneEvent(ctx context.Context, e models.ZoneEvent) (err error) {
	defer observe("insert_zone_event", time.Now(), &err)

	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO zone_events (id, vehicle_id, zone_id, zone_name, event_type, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.VehicleID, e.ZoneID, e.ZoneName, string(e.EventType), e.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert zone event %s: %w", e.ID, err)
	}
	return nil
}

// RecentZoneEvents returns up to limit events, most recent first.
func (db *DB) RecentZoneEvents(ctx context.Context, limit int) (events []models.ZoneEvent, err error) {
	defer observe("recent_zone_events", time.Now(), &err)

	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, vehicle_id, zone_id, zone_name, event_type, created_at
		FROM zone_events ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query zone events: %w", err)
	}
	defer rows.Close()

	events = []models.ZoneEvent{}
	for rows.Next() {
		var (
			e         models.ZoneEvent
			eventType string
		)
		if err = rows.Scan(&e.ID, &e.VehicleID, &e.ZoneID, &e.ZoneName, &eventType, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan zone event: %w", err)
		}
		e.EventType = models.ZoneEventType(eventType)
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate zone events: %w", err)
	}
	return events, nil
}
