// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package geofence

import (
	"context"
	"time"

	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/metrics"
	"github.com/ifauzeee/BipolTracker/internal/models"
)

// ZoneSource lists zone definitions in load order.
type ZoneSource interface {
	ListZones(ctx context.Context) ([]models.Zone, error)
}

// Refresher polls a ZoneSource and installs the result into a Detector.
// It implements suture.Service.
type Refresher struct {
	source   ZoneSource
	detector *Detector
	interval time.Duration
	timeout  time.Duration
	trigger  chan struct{}
}

// NewRefresher creates a refresher polling every interval.
func NewRefresher(source ZoneSource, detector *Detector, interval time.Duration) *Refresher {
	return &Refresher{
		source:   source,
		detector: detector,
		interval: interval,
		timeout:  10 * time.Second,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests a reload without waiting for the next tick. Calls made
// while a reload is already pending are coalesced.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Serve loads zones immediately, then on every tick or Trigger, until ctx
// is cancelled.
func (r *Refresher) Serve(ctx context.Context) error {
	r.Refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Refresh(ctx)
		case <-r.trigger:
			r.Refresh(ctx)
		}
	}
}

// Refresh performs one load. On failure the detector keeps its current zones.
func (r *Refresher) Refresh(ctx context.Context) {
	loadCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	zones, err := r.source.ListZones(loadCtx)
	if err != nil {
		metrics.ZoneRefreshes.WithLabelValues("failure").Inc()
		logging.Warn().
			Err(err).
			Int("zones_in_use", len(r.detector.Zones())).
			Msg("Zone refresh failed, keeping last loaded zones")
		return
	}

	r.detector.SetZones(zones)
	metrics.ZoneRefreshes.WithLabelValues("success").Inc()
	metrics.ZonesLoaded.Set(float64(len(zones)))
	logging.Debug().Int("zones", len(zones)).Msg("Zones refreshed")
}

// String implements fmt.Stringer for supervisor logs.
func (r *Refresher) String() string {
	return "zone-refresher"
}
