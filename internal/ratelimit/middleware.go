// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/metrics"
)

// RejectFunc writes the response for a throttled request. Rate limit
// headers are already set when it is called.
type RejectFunc func(w http.ResponseWriter, r *http.Request, d Decision)

// Middleware throttles requests of one class by client IP. It expects
// chi's RealIP middleware to have run. A store error lets the request
// through.
func (l *Limiter) Middleware(class Class, reject RejectFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), class, ClientIP(r))
			if err != nil {
				logging.Ctx(r.Context()).Warn().Err(err).Str("class", class.Name).Msg("Rate limit check failed, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			SetHeaders(w.Header(), d)
			if !d.Allowed {
				metrics.RateLimitRejections.WithLabelValues(class.Name).Inc()
				reject(w, r, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SetHeaders writes X-RateLimit-* headers, plus Retry-After on rejection.
func SetHeaders(h http.Header, d Decision) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	if !d.Allowed {
		h.Set("Retry-After", strconv.Itoa(RetryAfterSeconds(d.RetryAfter)))
	}
}

// RetryAfterSeconds rounds up to whole seconds, never below one.
func RetryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

// ClientIP returns the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
