// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package services

import (
	"context"
)

// ContextHub is satisfied by *websocket.Hub.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
	GetClientCount() int
}

// BroadcastHubService runs the broadcast hub under suture. A restarted hub
// starts with no clients; subscribers reconnect and pull current state.
type BroadcastHubService struct {
	hub ContextHub
}

// NewBroadcastHubService wraps hub.
func NewBroadcastHubService(hub ContextHub) *BroadcastHubService {
	return &BroadcastHubService{hub: hub}
}

// Serve implements suture.Service.
func (w *BroadcastHubService) Serve(ctx context.Context) error {
	return w.hub.RunWithContext(ctx)
}

func (w *BroadcastHubService) String() string {
	return "broadcast-hub"
}
