// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/ifauzeee/BipolTracker/internal/metrics"
	"github.com/ifauzeee/BipolTracker/internal/ratelimit"
)

// ChiMiddlewareConfig holds configuration for Chi middleware factories.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSExposedHeaders []string
	CORSMaxAge         int // seconds

	// Read endpoints use a sliding window per client IP.
	ReadRequests int
	ReadWindow   time.Duration
	Disabled     bool
}

// DefaultChiMiddlewareConfig returns the configuration used when none is
// given.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		CORSExposedHeaders: []string{
			"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After",
		},
		CORSMaxAge: 86400,

		ReadRequests: 300,
		ReadWindow:   time.Minute,
	}
}

// ChiMiddleware provides Chi-compatible middleware factories.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates a new Chi middleware factory with the given configuration.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: config.CORSAllowedOrigins,
		AllowedMethods: config.CORSAllowedMethods,
		AllowedHeaders: config.CORSAllowedHeaders,
		ExposedHeaders: config.CORSExposedHeaders,
		MaxAge:         config.CORSMaxAge,
	})

	return &ChiMiddleware{
		config: config,
		cors:   corsHandler,
	}
}

// CORS returns the go-chi/cors middleware. It must be global so OPTIONS
// preflights reach it.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimitRead throttles query endpoints and the websocket upgrade by
// client IP.
func (m *ChiMiddleware) RateLimitRead() func(http.Handler) http.Handler {
	if m.config.Disabled || m.config.ReadRequests <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		m.config.ReadRequests,
		m.config.ReadWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(readLimitExceeded(m.config.ReadRequests, m.config.ReadWindow)),
	)
}

func readLimitExceeded(limit int, window time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metrics.RateLimitRejections.WithLabelValues("read").Inc()
		retry := ratelimit.RetryAfterSeconds(window)
		if v, err := strconv.Atoi(w.Header().Get("Retry-After")); err == nil && v > 0 {
			retry = v
		}
		NewResponseWriter(w, r).TooManyRequests(limit, retry)
	}
}

// rejectRateLimited renders fixed-window limiter rejections.
func rejectRateLimited(w http.ResponseWriter, r *http.Request, d ratelimit.Decision) {
	NewResponseWriter(w, r).TooManyRequests(d.Limit, ratelimit.RetryAfterSeconds(d.RetryAfter))
}
