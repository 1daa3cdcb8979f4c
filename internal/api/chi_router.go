// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ifauzeee/BipolTracker/internal/auth"
	"github.com/ifauzeee/BipolTracker/internal/config"
	"github.com/ifauzeee/BipolTracker/internal/middleware"
	"github.com/ifauzeee/BipolTracker/internal/ratelimit"
)

// Router assembles handlers and middleware into the HTTP surface.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	limiter       *ratelimit.Limiter
	guard         *auth.Middleware

	telemetryClass ratelimit.Class
	adminClass     ratelimit.Class
}

// NewRouter builds a Router. limiter may be nil to disable fixed-window
// throttling of the track and admin routes.
func NewRouter(handler *Handler, limiter *ratelimit.Limiter, jwtManager *auth.JWTManager, cfg *config.Config) *Router {
	mwCfg := DefaultChiMiddlewareConfig()
	if len(cfg.Security.CORSOrigins) > 0 {
		mwCfg.CORSAllowedOrigins = cfg.Security.CORSOrigins
	}
	if cfg.RateLimit.ReadRequests > 0 {
		mwCfg.ReadRequests = cfg.RateLimit.ReadRequests
	}
	if cfg.RateLimit.ReadWindow > 0 {
		mwCfg.ReadWindow = cfg.RateLimit.ReadWindow
	}
	mwCfg.Disabled = cfg.RateLimit.Disabled
	if cfg.RateLimit.Disabled {
		limiter = nil
	}

	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(mwCfg),
		limiter:       limiter,
		guard:         auth.NewMiddleware(jwtManager, cfg.Security, denyAdmin),
		telemetryClass: ratelimit.Class{
			Name:   "telemetry",
			Limit:  cfg.RateLimit.Telemetry.Max,
			Window: cfg.RateLimit.Telemetry.Window(),
		},
		adminClass: ratelimit.Class{
			Name:   "admin",
			Limit:  cfg.RateLimit.Admin.Max,
			Window: cfg.RateLimit.Admin.Window(),
		},
	}
}

// limit returns the fixed-window middleware for class, or a pass-through
// when throttling is off.
func (router *Router) limit(class ratelimit.Class) func(http.Handler) http.Handler {
	if router.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return router.limiter.Middleware(class, rejectRateLimited)
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, in order. RealIP runs before anything keyed by
	// client address.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.chiMiddleware.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	})

	r.Handle("/metrics", promhttp.Handler())

	r.With(router.chiMiddleware.RateLimitRead()).Get("/ws", router.handler.WebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health/live", router.handler.HealthLive)
		r.Get("/health/ready", router.handler.HealthReady)

		r.With(router.limit(router.telemetryClass)).Post("/track", router.handler.Track)

		r.Group(func(r chi.Router) {
			r.Use(router.chiMiddleware.RateLimitRead())
			r.Get("/bus/locations", router.handler.BusLocations)
			r.Get("/geofence-events", router.handler.GeofenceEvents)
		})
		r.Get("/bus/{vehicleID}", router.handler.BusLocation)
		r.Get("/geofences", router.handler.Geofences)
		r.Get("/config", router.handler.PublicConfig)

		r.Route("/admin", func(r chi.Router) {
			r.Use(router.guard.RequireAdmin)
			r.Get("/settings", router.handler.AdminSettings)

			r.Group(func(r chi.Router) {
				r.Use(router.limit(router.adminClass))
				r.Put("/settings", router.handler.UpdateSettings)
				r.Post("/geofences", router.handler.CreateGeofence)
				r.Delete("/geofences/{id}", router.handler.DeleteGeofence)
			})
		})
	})

	return r
}
