// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

/*
Package supervisor runs the tracker's long-lived services under suture v4.

The tree has three layers, each its own supervisor with independent failure
counting:

	bipoltracker
	├── data-layer
	│   ├── store-writer
	│   ├── settings-refresher
	│   ├── retention-reaper
	│   ├── cache-sweeper
	│   └── ratelimit-reaper (memory backend only)
	├── messaging-layer
	│   ├── broadcast-hub
	│   ├── zone-refresher
	│   ├── event-publisher (if nats.enabled)
	│   └── legacy-forwarder (if udp.legacy.enabled)
	└── api-layer
	    ├── http-server
	    └── udp-listener

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddDataService(writer)
	tree.AddMessagingService(services.NewBroadcastHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(srv, addr, timeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tree.Serve(ctx)

A service that returns a non-nil error is restarted after FailureBackoff
once its layer crosses FailureThreshold. Returning ctx.Err() after
cancellation is a clean stop.
*/
package supervisor
