// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ifauzeee/BipolTracker/internal/cache"
	"github.com/ifauzeee/BipolTracker/internal/config"
	"github.com/ifauzeee/BipolTracker/internal/ingest"
	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/models"
	ws "github.com/ifauzeee/BipolTracker/internal/websocket"
)

// Store is the part of the store the handlers read and write directly.
type Store interface {
	Ping(ctx context.Context) error
	LatestLocations(ctx context.Context, window int) ([]models.EnrichedSample, error)
	ListZones(ctx context.Context) ([]models.Zone, error)
	CreateZone(ctx context.Context, z models.Zone) error
	DeleteZone(ctx context.Context, id string) (bool, error)
	RecentZoneEvents(ctx context.Context, limit int) ([]models.ZoneEvent, error)
}

// SettingsService exposes runtime settings.
type SettingsService interface {
	Current() models.Settings
	PublicConfig() models.PublicConfig
	Update(ctx context.Context, updates map[string]string) (models.Settings, error)
}

// ZoneRefresher reloads the detector's zones outside the poll interval.
type ZoneRefresher interface {
	Trigger()
}

// Deps are the collaborators of Handler. Hub may be nil, in which case /ws
// answers 503.
type Deps struct {
	Pipeline ingest.Processor
	Store    Store
	Settings SettingsService
	Zones    ZoneRefresher
	Cache    cache.Cacher
	Hub      *ws.Hub
	Config   *config.Config
}

// Handler holds the HTTP handlers.
type Handler struct {
	pipeline  ingest.Processor
	store     Store
	settings  SettingsService
	zones     ZoneRefresher
	cache     cache.Cacher
	wsHub     *ws.Hub
	config    *config.Config
	startTime time.Time
	newID     func() string
	now       func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		pipeline:  deps.Pipeline,
		store:     deps.Store,
		settings:  deps.Settings,
		zones:     deps.Zones,
		cache:     deps.Cache,
		wsHub:     deps.Hub,
		config:    deps.Config,
		startTime: time.Now(),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	// Browsers always send Origin on websocket handshakes.
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}

	if h.config == nil {
		return true
	}

	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the connection and registers it with the hub. New
// clients get no backlog; they pull /api/bus/locations for current state.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		NewResponseWriter(w, r).ServiceUnavailable("WebSocket service unavailable")
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	if !h.wsHub.RegisterClient(client) {
		logging.Warn().Msg("WebSocket connection closed: hub stopped")
		_ = conn.Close()
		return
	}
	client.Start()
}
