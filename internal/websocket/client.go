// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/ifauzeee/BipolTracker/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// clientIDCounter gives clients a stable broadcast order.
var clientIDCounter atomic.Uint64

// Client is a middleman between the websocket connection and the hub
type Client struct {
	id   uint64
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient creates a new Client with a unique ID
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Message, hub.clientBuffer),
	}
}

// ID returns the client's unique identifier
func (c *Client) ID() uint64 {
	return c.id
}

// readPump consumes inbound frames. Subscribers only ever send pings; any
// other payload is ignored.
func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Uint64("client_id", c.id).Msg("unexpected websocket close")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == MessageTypePing {
			select {
			case c.send <- Message{Type: MessageTypePong}:
			default:
			}
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}

			if !ok {
				// The hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			payload, err := marshalMessage(message)
			if err != nil {
				logging.Error().Err(err).Str("message_type", message.Type).Msg("failed to encode websocket message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
