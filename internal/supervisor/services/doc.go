// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

// Package services adapts components whose lifecycle is not already
// context-shaped to suture.Service.
//
// HTTPServerService turns ListenAndServe/Shutdown into Serve(ctx).
// BroadcastHubService runs the websocket hub loop.
//
// Components that already expose Serve(ctx) error and String() (the store
// writer, the UDP listener, the retention reaper and the NATS publisher) are
// added to the tree directly.
package services
