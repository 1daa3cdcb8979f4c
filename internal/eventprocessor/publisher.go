// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ifauzeee/BipolTracker/internal/config"
	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/metrics"
	"github.com/ifauzeee/BipolTracker/internal/models"
)

// PublisherConfig configures topics and buffering.
type PublisherConfig struct {
	ZoneEventsTopic  string
	TelemetryTopic   string
	PublishTelemetry bool
	Buffer           int
	TrackMsgID       bool
	Breaker          CircuitBreakerConfig
}

// PublisherConfigFrom maps the NATS config section.
func PublisherConfigFrom(cfg config.NATSConfig) PublisherConfig {
	return PublisherConfig{
		ZoneEventsTopic:  cfg.ZoneEventsTopic,
		TelemetryTopic:   cfg.TelemetryTopic,
		PublishTelemetry: cfg.PublishTelemetry,
		Buffer:           cfg.PublishBuffer,
		TrackMsgID:       cfg.JetStream,
		Breaker:          DefaultCircuitBreakerConfig("event-publisher"),
	}
}

// NewNATSPublisher connects a Watermill publisher to NATS. With JetStream
// enabled, streams are provisioned on first publish and the message UUID is
// sent as Nats-Msg-Id for broker-side deduplication.
func NewNATSPublisher(cfg config.NATSConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	if logger == nil {
		logger = logging.NewWatermillLogger()
	}

	natsOpts := []natsgo.Option{
		natsgo.Name("bipoltracker"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      !cfg.JetStream,
			AutoProvision: cfg.JetStream,
			TrackMsgId:    cfg.JetStream,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return pub, nil
}

type outbound struct {
	topic string
	msg   *message.Message
}

// Publisher queues domain events and publishes them from Serve.
type Publisher struct {
	publisher message.Publisher
	cb        *gobreaker.CircuitBreaker[struct{}]
	cfg       PublisherConfig
	queue     chan outbound

	mu     sync.RWMutex
	closed bool
}

// NewPublisher wraps a Watermill publisher. Serve owns its lifetime and
// closes it on shutdown.
func NewPublisher(pub message.Publisher, cfg PublisherConfig) *Publisher {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker = DefaultCircuitBreakerConfig("event-publisher")
	}
	return &Publisher{
		publisher: pub,
		cb:        NewCircuitBreaker(cfg.Breaker),
		cfg:       cfg,
		queue:     make(chan outbound, cfg.Buffer),
	}
}

// PublishZoneEvent queues a zone transition. False means it was dropped.
func (p *Publisher) PublishZoneEvent(e models.ZoneEvent) bool {
	data, err := Marshal(NewZoneEventMessage(e))
	if err != nil {
		logging.Warn().Err(err).Msg("zone event not publishable")
		return false
	}
	msg := message.NewMessage(e.ID, data)
	msg.Metadata.Set("vehicle_id", e.VehicleID)
	msg.Metadata.Set("event_type", string(e.EventType))
	return p.enqueue(p.cfg.ZoneEventsTopic, msg)
}

// PublishTelemetry queues a sample when telemetry publishing is on.
func (p *Publisher) PublishTelemetry(s models.EnrichedSample) bool {
	if !p.cfg.PublishTelemetry {
		return false
	}
	data, err := Marshal(NewTelemetryMessage(s))
	if err != nil {
		logging.Warn().Err(err).Msg("sample not publishable")
		return false
	}
	msg := message.NewMessage(s.ServerID, data)
	msg.Metadata.Set("vehicle_id", s.VehicleID)
	return p.enqueue(p.cfg.TelemetryTopic, msg)
}

func (p *Publisher) enqueue(topic string, msg *message.Message) bool {
	if p.cfg.TrackMsgID {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		metrics.EventPublishes.WithLabelValues(topic, "dropped").Inc()
		return false
	}

	select {
	case p.queue <- outbound{topic: topic, msg: msg}:
		return true
	default:
		metrics.EventPublishes.WithLabelValues(topic, "dropped").Inc()
		logging.Warn().Str("topic", topic).Msg("event publish queue full, dropping message")
		return false
	}
}

// Serve publishes queued messages until ctx is canceled, then flushes what
// is already queued and closes the underlying publisher.
func (p *Publisher) Serve(ctx context.Context) error {
	for {
		select {
		case out := <-p.queue:
			p.publish(out)
		case <-ctx.Done():
			p.shutdown()
			return ctx.Err()
		}
	}
}

func (p *Publisher) shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case out := <-p.queue:
			p.publish(out)
		default:
			if err := p.publisher.Close(); err != nil {
				logging.Warn().Err(err).Msg("event publisher close failed")
			}
			return
		}
	}
}

func (p *Publisher) publish(out outbound) {
	_, err := p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.publisher.Publish(out.topic, out.msg)
	})

	switch {
	case err == nil:
		metrics.EventPublishes.WithLabelValues(out.topic, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.EventPublishes.WithLabelValues(out.topic, "rejected").Inc()
	default:
		metrics.EventPublishes.WithLabelValues(out.topic, "failure").Inc()
		logging.Warn().Err(err).Str("topic", out.topic).Str("uuid", out.msg.UUID).Msg("event publish failed")
	}
}

func (p *Publisher) String() string {
	return "event-publisher"
}
