// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

// Package testinfra starts throwaway containers for integration tests.
//
// Everything here is behind the integration build tag:
//
//	go test -tags integration ./...
//
// # Postgres
//
// NewPostgresContainer backs the store's postgres driver tests:
//
//	func TestStorePostgres(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    pg, err := testinfra.NewPostgresContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, pg)
//
//	    db, err := store.New(&config.DatabaseConfig{Driver: "postgres", DSN: pg.DSN})
//	    // ...
//	}
//
// # Redis
//
// NewRedisContainer backs the rate limiter's Redis store, which shares
// fixed-window counters between replicas.
//
// Tests skip when Docker is unavailable. The first run pulls images.
package testinfra
