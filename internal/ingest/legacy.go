// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package ingest

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ifauzeee/BipolTracker/internal/config"
	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/metrics"
	"github.com/ifauzeee/BipolTracker/internal/telemetry"
)

// LegacyForwarder sends a remapped three-field frame for selected vehicles
// to the old tracker listener. Frames go through a bounded channel drained by
// one goroutine; a full channel drops the frame.
type LegacyForwarder struct {
	conn        *net.UDPConn
	frames      chan []byte
	idMap       map[string]string
	logInterval time.Duration
	address     string
}

// NewLegacyForwarder dials the legacy listener. The dial does not send
// anything, so an unreachable host only shows up as write errors later.
func NewLegacyForwarder(cfg config.LegacyConfig) (*LegacyForwarder, error) {
	address := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	raddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("resolve legacy address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial legacy listener: %w", err)
	}

	queue := cfg.QueueSize
	if queue <= 0 {
		queue = 1000
	}
	interval := cfg.LogInterval
	if interval <= 0 {
		interval = time.Minute
	}
	idMap := make(map[string]string, len(cfg.IDMap))
	for k, v := range cfg.IDMap {
		idMap[k] = v
	}

	return &LegacyForwarder{
		conn:        conn,
		frames:      make(chan []byte, queue),
		idMap:       idMap,
		logInterval: interval,
		address:     address,
	}, nil
}

// Forward queues a frame for vehicleID if it has a legacy id. It reports
// whether a frame was queued.
func (f *LegacyForwarder) Forward(vehicleID string, lat, lon float64) bool {
	legacyID, ok := f.idMap[vehicleID]
	if !ok {
		return false
	}

	select {
	case f.frames <- telemetry.LegacyFrame(legacyID, lat, lon):
		return true
	default:
		metrics.LegacyForwards.WithLabelValues("dropped").Inc()
		return false
	}
}

// Serve writes queued frames until ctx is done, then closes the socket.
// Write errors are summarised once per log interval.
func (f *LegacyForwarder) Serve(ctx context.Context) error {
	defer f.conn.Close()

	ticker := time.NewTicker(f.logInterval)
	defer ticker.Stop()

	logging.Info().Str("address", f.address).Msg("forwarding frames to legacy listener")

	failed := 0
	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-f.frames:
			if _, err := f.conn.Write(frame); err != nil {
				failed++
				lastErr = err
				metrics.LegacyForwards.WithLabelValues("error").Inc()
				continue
			}
			metrics.LegacyForwards.WithLabelValues("sent").Inc()
		case <-ticker.C:
			if failed > 0 {
				logging.Warn().
					Err(lastErr).
					Int("failed", failed).
					Str("address", f.address).
					Msg("legacy forward errors")
				failed = 0
				lastErr = nil
			}
		}
	}
}

func (f *LegacyForwarder) String() string {
	return "legacy-forwarder"
}
