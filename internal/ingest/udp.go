// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/metrics"
	"github.com/ifauzeee/BipolTracker/internal/models"
	"github.com/ifauzeee/BipolTracker/internal/telemetry"
)

// readDeadline bounds each blocking read so cancellation is noticed.
const readDeadline = 250 * time.Millisecond

// Processor is the part of Pipeline the listener needs.
type Processor interface {
	Process(raw models.RawSample) (Result, error)
}

// Forwarder receives accepted samples for the legacy listener.
type Forwarder interface {
	Forward(vehicleID string, lat, lon float64) bool
}

// UDPListenerConfig configures a UDPListener. Forwarder and Limiter are
// optional.
type UDPListenerConfig struct {
	Address    string
	ReadBuffer int
	Processor  Processor
	Forwarder  Forwarder
	Limiter    *rate.Limiter
}

// UDPListener reads telemetry datagrams. Senders never get a reply; bad
// frames are counted and logged at debug level only.
type UDPListener struct {
	cfg UDPListenerConfig

	mu   sync.Mutex
	conn *net.UDPConn
}

// NewUDPListener returns a listener that binds when served.
func NewUDPListener(cfg UDPListenerConfig) *UDPListener {
	return &UDPListener{cfg: cfg}
}

// NewDatagramLimiter returns a token bucket admitting perSecond datagrams
// with the given burst, or nil when perSecond is zero.
func NewDatagramLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Addr returns the bound address, or nil before the socket is open.
func (l *UDPListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Serve binds the socket and reads datagrams until ctx is done.
func (l *UDPListener) Serve(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.cfg.Address)
	if err != nil {
		return fmt.Errorf("resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen on UDP address: %w", err)
	}
	defer l.close()

	if l.cfg.ReadBuffer > 0 {
		if err := conn.SetReadBuffer(l.cfg.ReadBuffer); err != nil {
			logging.Warn().Err(err).Int("bytes", l.cfg.ReadBuffer).Msg("failed to set UDP receive buffer")
		}
	}

	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()

	logging.Info().Str("address", conn.LocalAddr().String()).Msg("UDP listener started")

	// One byte beyond the frame limit lets oversized datagrams be detected.
	buf := make([]byte, telemetry.MaxFrameBytes+1)
	for {
		if ctx.Err() != nil {
			logging.Info().Msg("UDP listener stopping")
			return ctx.Err()
		}

		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("UDP read: %w", err)
		}

		l.handle(buf[:n], from)
	}
}

func (l *UDPListener) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
}

func (l *UDPListener) handle(payload []byte, from *net.UDPAddr) {
	if l.cfg.Limiter != nil && !l.cfg.Limiter.Allow() {
		metrics.UDPDatagrams.WithLabelValues("throttled").Inc()
		return
	}
	metrics.UDPDatagrams.WithLabelValues("received").Inc()

	raw, err := telemetry.ParseFrame(payload)
	if err != nil {
		metrics.UDPDatagrams.WithLabelValues("malformed").Inc()
		metrics.TelemetrySamples.WithLabelValues(string(models.TransportUDP), "malformed").Inc()
		logging.Debug().Str("from", from.String()).Int("bytes", len(payload)).Msg("dropped malformed datagram")
		return
	}

	res, err := l.cfg.Processor.Process(raw)
	if err != nil {
		metrics.UDPDatagrams.WithLabelValues("rejected").Inc()
		logging.Debug().Err(err).Str("from", from.String()).Msg("dropped invalid datagram")
		return
	}

	if l.cfg.Forwarder != nil {
		l.cfg.Forwarder.Forward(res.Sample.VehicleID, res.Sample.Latitude, res.Sample.Longitude)
	}
}

func (l *UDPListener) String() string {
	return "udp-listener"
}
