// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package main

import (
	"fmt"

	"github.com/ifauzeee/BipolTracker/internal/config"
	"github.com/ifauzeee/BipolTracker/internal/eventprocessor"
	"github.com/ifauzeee/BipolTracker/internal/ingest"
	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/supervisor"
)

// initEventPublisher connects the NATS publisher when nats.enabled is set
// and adds it to the messaging layer. It returns a nil interface when
// disabled so the pipeline skips publishing entirely.
func initEventPublisher(cfg *config.Config, tree *supervisor.SupervisorTree) (ingest.EventPublisher, error) {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("Event publishing disabled (nats.enabled=false)")
		return nil, nil
	}

	pub, err := eventprocessor.NewNATSPublisher(cfg.NATS, logging.NewWatermillLogger())
	if err != nil {
		return nil, fmt.Errorf("connect NATS publisher: %w", err)
	}

	publisher := eventprocessor.NewPublisher(pub, eventprocessor.PublisherConfigFrom(cfg.NATS))
	tree.AddMessagingService(publisher)

	logging.Info().
		Str("url", cfg.NATS.URL).
		Bool("jetstream", cfg.NATS.JetStream).
		Str("zone_events_topic", cfg.NATS.ZoneEventsTopic).
		Bool("publish_telemetry", cfg.NATS.PublishTelemetry).
		Msg("Event publisher enabled")
	return publisher, nil
}
