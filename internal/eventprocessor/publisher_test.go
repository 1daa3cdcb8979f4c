// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package eventprocessor

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

var at = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

func testPublisherConfig() PublisherConfig {
	return PublisherConfig{
		ZoneEventsTopic:  "fleet.zone_events",
		TelemetryTopic:   "fleet.telemetry",
		PublishTelemetry: true,
		Buffer:           16,
		Breaker: CircuitBreakerConfig{
			Name:             "test-publisher",
			MaxRequests:      1,
			Timeout:          time.Minute,
			FailureThreshold: 2,
		},
	}
}

func zoneEvent(id string) models.ZoneEvent {
	return models.ZoneEvent{ID: id, VehicleID: "BUS-01", ZoneID: "z1", ZoneName: "Gerbang Utama", EventType: models.ZoneEnter, Timestamp: at}
}

// runPublisher starts Serve and stops it when the test ends.
func runPublisher(t *testing.T, p *Publisher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = p.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func receiveMsg(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-ch:
		msg.Ack()
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
	return nil
}

func TestPublisher_ZoneEventRoundTrip(t *testing.T) {
	bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, logging.NewWatermillLogger())
	sub, err := bus.Subscribe(context.Background(), "fleet.zone_events")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	p := NewPublisher(bus, testPublisherConfig())
	runPublisher(t, p)

	if !p.PublishZoneEvent(zoneEvent("evt-1")) {
		t.Fatal("PublishZoneEvent returned false")
	}

	msg := receiveMsg(t, sub)
	if msg.UUID != "evt-1" {
		t.Errorf("UUID = %q, want evt-1", msg.UUID)
	}
	if msg.Metadata.Get("event_type") != "ENTER" || msg.Metadata.Get("vehicle_id") != "BUS-01" {
		t.Errorf("metadata = %v", msg.Metadata)
	}

	got, err := UnmarshalZoneEvent(msg.Payload)
	if err != nil {
		t.Fatalf("UnmarshalZoneEvent() error = %v", err)
	}
	if got.SchemaVersion != SchemaVersion || got.ZoneName != "Gerbang Utama" || !got.Timestamp.Equal(at) {
		t.Errorf("payload = %+v", got)
	}
}

func TestPublisher_Telemetry(t *testing.T) {
	bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, logging.NewWatermillLogger())
	sub, err := bus.Subscribe(context.Background(), "fleet.telemetry")
	if err != nil {
		t.Fatal(err)
	}

	p := NewPublisher(bus, testPublisherConfig())
	runPublisher(t, p)

	s := models.EnrichedSample{ServerID: "srv-9", VehicleID: "BUS-02", Latitude: -6.36, Longitude: 106.82, Status: models.StatusParked, CreatedAt: at}
	if !p.PublishTelemetry(s) {
		t.Fatal("PublishTelemetry returned false")
	}

	got, err := UnmarshalTelemetry(receiveMsg(t, sub).Payload)
	if err != nil {
		t.Fatal(err)
	}
	if got.ServerID != "srv-9" || got.Status != models.StatusParked {
		t.Errorf("payload = %+v", got)
	}
}

func TestPublisher_TelemetryDisabled(t *testing.T) {
	cfg := testPublisherConfig()
	cfg.PublishTelemetry = false
	p := NewPublisher(&recordingPublisher{}, cfg)

	if p.PublishTelemetry(models.EnrichedSample{ServerID: "s", VehicleID: "v"}) {
		t.Error("telemetry should not be queued when disabled")
	}
}

func TestPublisher_InvalidEventNotQueued(t *testing.T) {
	p := NewPublisher(&recordingPublisher{}, testPublisherConfig())
	if p.PublishZoneEvent(models.ZoneEvent{ID: "e", VehicleID: "v", EventType: "INSIDE"}) {
		t.Error("invalid event type should be rejected")
	}
	if len(p.queue) != 0 {
		t.Errorf("queue len = %d", len(p.queue))
	}
}

func TestPublisher_TrackMsgID(t *testing.T) {
	cfg := testPublisherConfig()
	cfg.TrackMsgID = true
	p := NewPublisher(&recordingPublisher{}, cfg)

	p.PublishZoneEvent(zoneEvent("evt-7"))
	out := <-p.queue
	if got := out.msg.Metadata.Get(natsgo.MsgIdHdr); got != "evt-7" {
		t.Errorf("Nats-Msg-Id = %q, want evt-7", got)
	}
}

// recordingPublisher is a message.Publisher that can fail on demand.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
	closed bool
}

func (r *recordingPublisher) Publish(topic string, msgs ...*message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	return r.err
}

func (r *recordingPublisher) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *recordingPublisher) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics)
}

func TestPublisher_QueueFullDrops(t *testing.T) {
	cfg := testPublisherConfig()
	cfg.Buffer = 1
	p := NewPublisher(&recordingPublisher{}, cfg)

	if !p.PublishZoneEvent(zoneEvent("a")) {
		t.Fatal("first publish should queue")
	}
	if p.PublishZoneEvent(zoneEvent("b")) {
		t.Error("second publish should drop")
	}
}

func TestPublisher_BreakerStopsCallingBroker(t *testing.T) {
	rec := &recordingPublisher{err: errors.New("nats: no responders")}
	p := NewPublisher(rec, testPublisherConfig())

	for _, id := range []string{"a", "b", "c", "d"} {
		p.PublishZoneEvent(zoneEvent(id))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Serve(ctx)

	if got := rec.calls(); got != 2 {
		t.Errorf("broker called %d times, want 2 before the breaker opened", got)
	}
}

func TestPublisher_ShutdownFlushesAndCloses(t *testing.T) {
	rec := &recordingPublisher{}
	p := NewPublisher(rec, testPublisherConfig())

	p.PublishZoneEvent(zoneEvent("a"))
	p.PublishZoneEvent(zoneEvent("b"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v", err)
	}

	if rec.calls() != 2 {
		t.Errorf("flushed %d messages, want 2", rec.calls())
	}
	if !rec.closed {
		t.Error("underlying publisher not closed")
	}
	if p.PublishZoneEvent(zoneEvent("late")) {
		t.Error("publish after shutdown should be refused")
	}
}

func TestZoneEventMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     ZoneEventMessage
		wantErr bool
	}{
		{"valid", NewZoneEventMessage(zoneEvent("e1")), false},
		{"missing id", ZoneEventMessage{VehicleID: "v", EventType: models.ZoneExit}, true},
		{"missing vehicle", ZoneEventMessage{EventID: "e", EventType: models.ZoneExit}, true},
		{"bad type", ZoneEventMessage{EventID: "e", VehicleID: "v", EventType: "MAYBE"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.msg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
