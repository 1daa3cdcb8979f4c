// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

// Package retention deletes aged telemetry rows from the store.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/metrics"
)

// Deleter removes samples created before a cutoff.
type Deleter interface {
	DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Reaper runs one sweep at start and then one per interval. A failed sweep is
// logged and counted; the next tick tries again.
type Reaper struct {
	store    Deleter
	window   time.Duration
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// NewReaper builds a reaper keeping window worth of samples.
func NewReaper(store Deleter, window, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Reaper{
		store:    store,
		window:   window,
		interval: interval,
		timeout:  5 * time.Minute,
		now:      time.Now,
	}
}

// Sweep deletes every sample older than the retention window.
func (r *Reaper) Sweep(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cutoff := r.now().Add(-r.window)
	n, err := r.store.DeleteSamplesBefore(ctx, cutoff)
	if err != nil {
		metrics.RetentionRuns.WithLabelValues("failure").Inc()
		return 0, fmt.Errorf("retention sweep: %w", err)
	}

	metrics.RetentionRuns.WithLabelValues("success").Inc()
	metrics.RetentionDeletedRows.Add(float64(n))
	logging.Info().
		Int64("deleted", n).
		Time("cutoff", cutoff).
		Dur("window", r.window).
		Msg("retention sweep complete")
	return n, nil
}

// Serve implements suture.Service.
func (r *Reaper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
			logging.Error().Err(err).Msg("retention sweep failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Reaper) String() string {
	return "retention-reaper"
}
