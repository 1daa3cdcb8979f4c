// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

// Package motion classifies vehicles as MOVING, STOPPED or PARKED.
//
// A vehicle reporting speed > 0 is MOVING. At zero speed it stays STOPPED
// until the stop timeout has elapsed since it last moved, then it is PARKED.
// A vehicle never seen moving is PARKED.
package motion

import (
	"sync"
	"time"

	"github.com/ifauzeee/BipolTracker/internal/models"
)

// TimeoutFunc returns the current stop timeout. It is read on every sample
// so operators can change it at runtime.
type TimeoutFunc func() time.Duration

// Engine tracks when each vehicle last moved.
type Engine struct {
	mu        sync.Mutex
	lastMoved map[string]time.Time
	timeout   TimeoutFunc
}

// NewEngine creates an engine reading the stop timeout from timeout.
func NewEngine(timeout TimeoutFunc) *Engine {
	return &Engine{
		lastMoved: make(map[string]time.Time),
		timeout:   timeout,
	}
}

// Classify records a sample observed at now and returns the status.
func (e *Engine) Classify(vehicleID string, speed float64, now time.Time) models.MotionStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	if speed > 0 {
		e.lastMoved[vehicleID] = now
		return models.StatusMoving
	}

	last, ok := e.lastMoved[vehicleID]
	if !ok {
		return models.StatusParked
	}
	if now.Sub(last) < e.timeout() {
		return models.StatusStopped
	}
	return models.StatusParked
}

// LastMoved returns when the vehicle last reported speed > 0.
func (e *Engine) LastMoved(vehicleID string) (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.lastMoved[vehicleID]
	return t, ok
}
