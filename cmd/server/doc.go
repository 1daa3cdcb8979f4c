// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

/*
Package main runs the BipolTracker server.

Vehicles report position and gas readings over UDP datagrams or POST
/api/track. Every accepted sample is normalized, checked against the
configured zones for ENTER/EXIT transitions, classified as MOVING, STOPPED
or PARKED, cached, queued for the store and broadcast to websocket
subscribers.

# Supervision

	bipoltracker
	├── data-layer       store-writer, settings-refresher, cache-sweeper,
	│                    retention-reaper, ratelimit-reaper (memory backend)
	├── messaging-layer  broadcast-hub, zone-refresher, event-publisher,
	│                    legacy-forwarder
	└── api-layer        http-server, udp-listener

# Configuration

Defaults, then config.yaml (CONFIG_PATH), then environment variables.
Frequently used variables:

	HTTP_PORT, UDP_PORT, UDP_ENABLED
	DB_DRIVER (duckdb|postgres), DUCKDB_PATH, DB_DSN
	RATE_LIMIT_MAX, RATE_LIMIT_WINDOW_MS, RATE_LIMIT_BACKEND, REDIS_ADDR
	CACHE_TTL_MS, DATA_RETENTION_HOURS
	GAS_ALERT_THRESHOLD, BUS_STOP_TIMEOUT_MINUTES, UDP_MIN_SPEED_THRESHOLD
	LEGACY_SERVER_HOST, LEGACY_SERVER_PORT
	NATS_ENABLED, NATS_URL, NATS_JETSTREAM
	AUTH_MODE (jwt|none), JWT_SECRET
	LOG_LEVEL, LOG_FORMAT

# Example

	export DB_DRIVER=duckdb DUCKDB_PATH=/data/bipol.duckdb
	export JWT_SECRET=$(openssl rand -base64 32)
	./bipoltracker

SIGINT and SIGTERM cancel the tree: listeners stop, the writer drains its
queue within writer.drain_timeout, and the store is closed last.
*/
package main
