// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/models"
)

// ListSettings returns every persisted setting row.
func (db *DB) ListSettings(ctx context.Context) (out []models.SettingRow, err error) {
	defer observe("list_settings", time.Now(), &err)

	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `SELECT key, value, updated_at FROM app_settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.SettingRow
		if err = rows.Scan(&r.Key, &r.Value, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		r.UpdatedAt = r.UpdatedAt.UTC()
		out = append(out, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return out, nil
}

// UpsertSetting writes a setting, replacing any existing value.
func (db *DB) UpsertSetting(ctx context.Context, key, value string, at time.Time) error {
	return db.UpsertSettings(ctx, map[string]string{key: value}, at)
}

// UpsertSettings writes every entry of values in one transaction. Either all
// keys are stored or none are.
func (db *DB) UpsertSettings(ctx context.Context, values map[string]string, at time.Time) (err error) {
	defer observe("upsert_settings", time.Now(), &err)
	if len(values) == 0 {
		return nil
	}

	ctx, cancel := db.queryContext(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().Err(rbErr).AnErr("original_error", err).Msg("settings rollback failed")
			}
		}
	}()

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO app_settings (key, value, updated_at) VALUES ($1, $2, $3)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, values[key], at.UTC()); err != nil {
			return fmt.Errorf("upsert setting %s: %w", key, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit settings: %w", err)
	}
	return nil
}
