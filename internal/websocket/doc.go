// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

/*
Package websocket fans enriched telemetry and zone events out to live
subscribers over gorilla/websocket connections.

Delivery is at-most-once and non-durable. There is no backlog or replay: a
subscriber that connects after an event never sees it, and late joiners pull
current state from /api/bus/locations instead. Broadcasting never blocks the
ingestion pipeline. A full hub queue drops the message and a client whose
send buffer is full is disconnected.

Architecture:

	┌──────────┐
	│   Hub    │ ← Broadcasts to all clients
	└────┬─────┘
	     │
	┌────┴─────┬─────────┬─────────┐
	│ Client1  │ Client2 │ Client3 │
	└──────────┴─────────┴─────────┘

Each client runs a readPump (answers application pings, tracks pong
deadlines) and a writePump (serializes messages, sends transport pings).

Message envelope:

	{"type": "telemetry", "data": {...enriched sample...}}
	{"type": "zone_event", "data": {"vehicle_id": "...", "zone_name": "...", "event_type": "ENTER", "timestamp": "..."}}
	{"type": "settings_update", "data": {"gasAlertThreshold": 600, "busStopTimeoutMinutes": 5}}
	{"type": "pong", "data": null}

Connection limits:
  - writeWait: 10 seconds
  - pongWait: 60 seconds
  - pingPeriod: 54 seconds
  - maxMessageSize: 4 KB inbound
*/
package websocket
