// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

/*
Package middleware provides chi-compatible HTTP middleware shared by the API
router.

  - RequestID: accepts or assigns X-Request-ID and seeds the logging context
  - PrometheusMetrics: api_requests_total, api_request_duration_seconds and
    api_active_requests, labelled by chi route pattern

Both are installed globally, RequestID first so every log line and error
envelope written further down carries the id:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

Rate limiting lives in the ratelimit package and CORS in the api package.
*/
package middleware
