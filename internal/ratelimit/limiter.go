// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

// Package ratelimit implements a fixed-window request limiter keyed by
// endpoint class and client identity.
//
// A window opens on the first request for a key and lasts W. Up to N requests
// are allowed in it; later ones are rejected with the time left in the
// window as the retry hint. The first request after the window has elapsed
// opens a fresh one.
package ratelimit

import (
	"context"
	"time"
)

// Class is the budget of one group of endpoints.
type Class struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Decision is the result of one request against a Class.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Store applies one hit to the record for key.
type Store interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

// Limiter applies classes against a Store.
type Limiter struct {
	store Store
}

// New returns a Limiter backed by store.
func New(store Store) *Limiter {
	return &Limiter{store: store}
}

// Allow counts one request from identity against class.
func (l *Limiter) Allow(ctx context.Context, class Class, identity string) (Decision, error) {
	return l.store.Hit(ctx, Key(class.Name, identity), class.Limit, class.Window)
}

// Key builds the record key for an identity within a class.
func Key(class, identity string) string {
	return class + ":" + identity
}
