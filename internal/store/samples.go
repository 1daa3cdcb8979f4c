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

const sampleColumns = `id, vehicle_id, latitude, longitude, speed, gas_level, occupancy, transport, status, created_at`

// InsertSample persists one enriched sample keyed by its server id.
func (db *DB) InsertSample(ctx context.Context, s models.EnrichedSample) (err error) {
	defer observe("insert_sample", time.Now(), &err)

	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO telemetry_samples (`+sampleColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		s.ServerID, s.VehicleID, s.Latitude, s.Longitude, s.Speed, s.GasLevel,
		s.Occupancy, string(s.Transport), string(s.Status), s.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert sample %s: %w", s.ServerID, err)
	}
	return nil
}

// RecentSamples returns up to limit rows, most recent first.
func (db *DB) RecentSamples(ctx context.Context, limit int) (out []models.EnrichedSample, err error) {
	defer observe("recent_samples", time.Now(), &err)

	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+sampleColumns+` FROM telemetry_samples ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent samples: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s                 models.EnrichedSample
			transport, status string
		)
		if err = rows.Scan(&s.ServerID, &s.VehicleID, &s.Latitude, &s.Longitude, &s.Speed, &s.GasLevel,
			&s.Occupancy, &transport, &status, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		s.Transport = models.Transport(transport)
		s.Status = models.MotionStatus(status)
		s.CreatedAt = s.CreatedAt.UTC()
		out = append(out, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return out, nil
}

// LatestLocations reads the window most recent rows and keeps the newest row
// per vehicle. A vehicle whose last report is older than the window is absent.
func (db *DB) LatestLocations(ctx context.Context, window int) ([]models.EnrichedSample, error) {
	rows, err := db.RecentSamples(ctx, window)
	if err != nil {
		return nil, err
	}
	return LatestPerVehicle(rows), nil
}

// LatestPerVehicle keeps the first row seen for each vehicle. Input must be
// ordered most recent first; output keeps that order.
func LatestPerVehicle(rows []models.EnrichedSample) []models.EnrichedSample {
	seen := make(map[string]struct{}, len(rows))
	out := make([]models.EnrichedSample, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.VehicleID]; ok {
			continue
		}
		seen[r.VehicleID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// DeleteSamplesBefore removes samples created strictly before cutoff and
// returns how many rows went.
func (db *DB) DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (n int64, err error) {
	defer observe("delete_samples", time.Now(), &err)

	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `DELETE FROM telemetry_samples WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete samples before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
