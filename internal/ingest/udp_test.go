// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package ingest

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ifauzeee/BipolTracker/internal/metrics"
	"github.com/ifauzeee/BipolTracker/internal/models"
	"github.com/ifauzeee/BipolTracker/internal/telemetry"
)

type recordingProcessor struct {
	mu   sync.Mutex
	raws []models.RawSample
	err  error
}

func (r *recordingProcessor) Process(raw models.RawSample) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raws = append(r.raws, raw)
	if r.err != nil {
		return Result{}, r.err
	}
	return Result{Sample: models.EnrichedSample{VehicleID: raw.VehicleID, Latitude: -6.2, Longitude: 106.8}}, nil
}

func (r *recordingProcessor) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.raws)
}

type recordingForwarder struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingForwarder) Forward(vehicleID string, _, _ float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, vehicleID)
	return true
}

func (r *recordingForwarder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// startListener serves l and returns a socket connected to it.
func startListener(t *testing.T, l *UDPListener) *net.UDPConn {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("listener did not stop")
		}
	})

	waitUntil(t, "listener bind", func() bool { return l.Addr() != nil })

	conn, err := net.DialUDP("udp", nil, l.Addr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestUDPListenerProcessesFrames(t *testing.T) {
	proc := &recordingProcessor{}
	fwd := &recordingForwarder{}
	l := NewUDPListener(UDPListenerConfig{Address: "127.0.0.1:0", Processor: proc, Forwarder: fwd})
	conn := startListener(t, l)

	if _, err := conn.Write([]byte("BUS-01,-6.200000,106.800000,12,300,extra\n")); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, "frame", func() bool { return proc.count() == 1 })
	waitUntil(t, "forward", func() bool { return fwd.count() == 1 })

	proc.mu.Lock()
	got := proc.raws[0]
	proc.mu.Unlock()
	want := models.RawSample{
		VehicleID: "BUS-01", Latitude: "-6.200000", Longitude: "106.800000",
		Speed: "12", GasLevel: "300", Transport: models.TransportUDP,
	}
	if got != want {
		t.Errorf("raw = %+v, want %+v", got, want)
	}
}

func TestUDPListenerDropsMalformed(t *testing.T) {
	proc := &recordingProcessor{}
	l := NewUDPListener(UDPListenerConfig{Address: "127.0.0.1:0", Processor: proc})
	conn := startListener(t, l)

	malformed := metrics.UDPDatagrams.WithLabelValues("malformed")
	before := testutil.ToFloat64(malformed)

	for _, frame := range []string{"BUS-01,-6.2,106.8", " ", strings.Repeat("x", telemetry.MaxFrameBytes+1)} {
		if _, err := conn.Write([]byte(frame)); err != nil {
			t.Fatal(err)
		}
	}
	waitUntil(t, "malformed count", func() bool { return testutil.ToFloat64(malformed)-before == 3 })
	if proc.count() != 0 {
		t.Errorf("processor saw %d malformed frames", proc.count())
	}
}

func TestUDPListenerRejectedNotForwarded(t *testing.T) {
	proc := &recordingProcessor{err: telemetry.ErrMissingVehicleID}
	fwd := &recordingForwarder{}
	l := NewUDPListener(UDPListenerConfig{Address: "127.0.0.1:0", Processor: proc, Forwarder: fwd})
	conn := startListener(t, l)

	if _, err := conn.Write([]byte("!!!,-6.2,106.8,0,0")); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, "frame", func() bool { return proc.count() == 1 })
	// Follow with a frame the processor also rejects so the first one is
	// known to be fully handled.
	if _, err := conn.Write([]byte("???,-6.2,106.8,0,0")); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, "second frame", func() bool { return proc.count() == 2 })
	if fwd.count() != 0 {
		t.Errorf("forwarded %d rejected frames", fwd.count())
	}
}

func TestUDPListenerThrottles(t *testing.T) {
	proc := &recordingProcessor{}
	l := NewUDPListener(UDPListenerConfig{
		Address:   "127.0.0.1:0",
		Processor: proc,
		Limiter:   NewDatagramLimiter(0.001, 1),
	})
	conn := startListener(t, l)

	throttled := metrics.UDPDatagrams.WithLabelValues("throttled")
	before := testutil.ToFloat64(throttled)

	for i := 0; i < 3; i++ {
		if _, err := conn.Write([]byte("BUS-01,-6.2,106.8,12,300")); err != nil {
			t.Fatal(err)
		}
	}
	waitUntil(t, "throttled count", func() bool { return testutil.ToFloat64(throttled)-before == 2 })
	if proc.count() != 1 {
		t.Errorf("processed %d datagrams, want 1", proc.count())
	}
}

func TestNewDatagramLimiter(t *testing.T) {
	if NewDatagramLimiter(0, 10) != nil {
		t.Error("zero rate should disable the guard")
	}
	l := NewDatagramLimiter(50, 0)
	if l == nil || l.Burst() != 50 {
		t.Errorf("burst default = %v", l)
	}
	if b := NewDatagramLimiter(0.5, 0).Burst(); b != 1 {
		t.Errorf("fractional rate burst = %d, want 1", b)
	}
}

func TestUDPListenerBadAddress(t *testing.T) {
	l := NewUDPListener(UDPListenerConfig{Address: "not-an-address", Processor: &recordingProcessor{}})
	if err := l.Serve(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if l.String() != "udp-listener" {
		t.Errorf("String() = %q", l.String())
	}
}
