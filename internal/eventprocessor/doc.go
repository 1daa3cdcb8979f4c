// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

// Package eventprocessor publishes zone transitions, and optionally every
// enriched sample, to an external event bus through Watermill.
//
// Publishing is off the ingestion path. Callers enqueue without blocking; a
// single goroutine drains the queue and publishes through a circuit breaker,
// so an unreachable broker costs dropped messages rather than latency. The
// bus is a notification channel for downstream consumers, not a source of
// truth: the store keeps the durable copy.
//
// Production wiring uses NATS (JetStream when enabled) via watermill-nats:
//
//	pub, err := eventprocessor.NewNATSPublisher(cfg.NATS, logging.NewWatermillLogger())
//	events := eventprocessor.NewPublisher(pub, eventprocessor.PublisherConfigFrom(cfg.NATS))
//
// Tests use Watermill's gochannel pub/sub in its place.
package eventprocessor
