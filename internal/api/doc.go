// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

/*
Package api serves the HTTP surface of BipolTracker.

Routes:

	POST   /api/track                      telemetry submission (fixed-window limited)
	GET    /api/bus/locations              latest sample per vehicle (cached)
	GET    /api/bus/{vehicleID}            latest cached sample of one vehicle
	GET    /api/geofences                  zone list (cached)
	GET    /api/geofence-events?limit=N    recent zone transitions (cached)
	GET    /api/config                     public runtime settings
	GET    /api/health/live                liveness probe
	GET    /api/health/ready               readiness probe (store ping)
	GET    /ws                             live telemetry and zone events
	GET    /metrics                        Prometheus exposition

	GET    /api/admin/settings             runtime settings (admin)
	PUT    /api/admin/settings             update runtime settings (admin)
	POST   /api/admin/geofences            create zone (admin)
	DELETE /api/admin/geofences/{id}       delete zone (admin)

Every JSON response uses the APIResponse envelope:

	{"success": true, "data": ..., "meta": {"timestamp": ..., "request_id": ...}}
	{"success": false, "error": {"code": "VALIDATION_FAILED", "message": ..., "details": ...}}

Telemetry submissions go through the same ingest.Pipeline as UDP datagrams.
The handler answers once the sample has been classified and handed to the
store writer; it never waits for the write itself. A writer that refuses the
sample (queue full or shut down) turns into 503, though the sample has still
been broadcast.

Admin writes delete the cache key of the aggregate they change. Zone writes
also trigger an immediate detector refresh.
*/
package api
