// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/metrics"
	"github.com/ifauzeee/BipolTracker/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypeTelemetry      = "telemetry"
	MessageTypeZoneEvent      = "zone_event"
	MessageTypeSettingsUpdate = "settings_update"
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
)

const (
	DefaultBroadcastBuffer = 256
	DefaultClientBuffer    = 64
)

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ZoneEventData is the zone_event payload.
type ZoneEventData struct {
	VehicleID string               `json:"vehicle_id"`
	ZoneID    string               `json:"zone_id"`
	ZoneName  string               `json:"zone_name"`
	EventType models.ZoneEventType `json:"event_type"`
	Timestamp time.Time            `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients      map[*Client]bool
	broadcast    chan Message
	Register     chan *Client
	Unregister   chan *Client
	clientBuffer int
	mu           sync.RWMutex

	runMu sync.Mutex
	done  chan struct{}
}

// NewHub creates a hub. Non-positive buffer sizes fall back to defaults.
func NewHub(broadcastBuffer, clientBuffer int) *Hub {
	if broadcastBuffer <= 0 {
		broadcastBuffer = DefaultBroadcastBuffer
	}
	if clientBuffer <= 0 {
		clientBuffer = DefaultClientBuffer
	}
	return &Hub{
		broadcast:    make(chan Message, broadcastBuffer),
		Register:     make(chan *Client),
		Unregister:   make(chan *Client),
		clients:      make(map[*Client]bool),
		clientBuffer: clientBuffer,
		done:         make(chan struct{}),
	}
}

// Done is closed while the hub is not running: after RunWithContext
// returns and until it is started again.
func (h *Hub) Done() <-chan struct{} {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	return h.done
}

func (h *Hub) markRunning() {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	select {
	case <-h.done:
		h.done = make(chan struct{})
	default:
	}
}

func (h *Hub) markStopped() {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// RegisterClient hands client to the running hub. It reports false if the
// hub stopped first; the caller owns the connection in that case.
func (h *Hub) RegisterClient(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.Done():
		return false
	}
}

// UnregisterClient removes client. It returns without waiting once the hub
// has stopped, since shutdown already closed every client.
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.Done():
	}
}

// RunWithContext runs the hub until ctx is canceled, then closes every
// client and returns ctx.Err(). Designed for suture supervision.
//
// Lifecycle events are drained before broadcasts so a client registered
// ahead of a message always receives it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.markRunning()
	defer h.markStopped()

	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketClients.Set(float64(n))
	logging.Debug().Int("total_clients", n).Msg("websocket client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketClients.Set(float64(n))
	logging.Debug().Int("total_clients", n).Msg("websocket client disconnected")
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// broadcastToClients delivers in client ID order. Clients whose buffer is
// full are dropped; they can reconnect and pull current state.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.sortedClientsLocked()

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		logging.Warn().Uint64("client_id", client.id).Msg("websocket client too slow, disconnecting")
	}
	if len(toRemove) > 0 {
		metrics.WebSocketClients.Set(float64(len(h.clients)))
	}
}

func (h *Hub) sortedClientsLocked() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClientsLocked() {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebSocketClients.Set(0)
}

// publish enqueues without blocking. Returns false if the queue was full.
func (h *Hub) publish(message Message) bool {
	select {
	case h.broadcast <- message:
		metrics.BroadcastMessages.WithLabelValues(message.Type).Inc()
		return true
	default:
		metrics.BroadcastDropped.WithLabelValues(message.Type).Inc()
		logging.Warn().Str("message_type", message.Type).Msg("broadcast channel full, dropping message")
		return false
	}
}

// BroadcastTelemetry publishes an enriched sample on the telemetry channel.
func (h *Hub) BroadcastTelemetry(sample models.EnrichedSample) bool {
	return h.publish(Message{Type: MessageTypeTelemetry, Data: sample})
}

// BroadcastZoneEvent publishes a zone transition on the zone_event channel.
func (h *Hub) BroadcastZoneEvent(event models.ZoneEvent) bool {
	return h.publish(Message{Type: MessageTypeZoneEvent, Data: ZoneEventData{
		VehicleID: event.VehicleID,
		ZoneID:    event.ZoneID,
		ZoneName:  event.ZoneName,
		EventType: event.EventType,
		Timestamp: event.Timestamp,
	}})
}

// BroadcastSettings tells subscribers the public configuration changed.
func (h *Hub) BroadcastSettings(cfg models.PublicConfig) bool {
	return h.publish(Message{Type: MessageTypeSettingsUpdate, Data: cfg})
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func marshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
