// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

// Package ingest turns raw telemetry into enriched samples and zone events.
//
// Both gateways, the UDP listener here and the HTTP track handler in the api
// package, call Pipeline.Process. A sample is normalized, queued for the
// store, classified by the zone detector and motion engine, cached as the
// vehicle's latest reading, and handed to the broadcast hub and the optional
// event publisher.
//
// Detection and classification for one vehicle run under a per-vehicle lock
// so two gateways racing on the same vehicle cannot interleave a membership
// change. Every downstream hand-off is a non-blocking enqueue; nothing in
// Process waits on the store or the network.
package ingest

import (
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ifauzeee/BipolTracker/internal/cache"
	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/metrics"
	"github.com/ifauzeee/BipolTracker/internal/models"
	"github.com/ifauzeee/BipolTracker/internal/telemetry"
)

const lockStripes = 64

// ZoneDetector updates zone membership for one sample.
type ZoneDetector interface {
	Evaluate(vehicleID string, lat, lon float64, at time.Time) []models.ZoneEvent
}

// MotionClassifier derives the motion status for one sample.
type MotionClassifier interface {
	Classify(vehicleID string, speed float64, now time.Time) models.MotionStatus
}

// RuntimeSettings supplies the thresholds operators can change at runtime.
type RuntimeSettings interface {
	MinSpeed() float64
	GasAlertThreshold() int
}

// SampleWriter queues persistence without blocking.
type SampleWriter interface {
	EnqueueSample(s models.EnrichedSample) bool
	EnqueueZoneEvent(e models.ZoneEvent) bool
}

// Broadcaster fans samples and events out to live subscribers.
type Broadcaster interface {
	BroadcastTelemetry(s models.EnrichedSample) bool
	BroadcastZoneEvent(e models.ZoneEvent) bool
}

// EventPublisher forwards samples and events to an external bus.
type EventPublisher interface {
	PublishTelemetry(s models.EnrichedSample) bool
	PublishZoneEvent(e models.ZoneEvent) bool
}

// Deps are the collaborators of a Pipeline. Publisher may be nil.
type Deps struct {
	Detector  ZoneDetector
	Motion    MotionClassifier
	Settings  RuntimeSettings
	Cache     cache.Cacher
	Writer    SampleWriter
	Hub       Broadcaster
	Publisher EventPublisher
}

// Bounds are the coordinate limits applied by the normalizer.
type Bounds struct {
	Latitude  float64
	Longitude float64
}

// Result is the outcome of one accepted sample.
type Result struct {
	Sample models.EnrichedSample
	Events []models.ZoneEvent

	// Queued is false when the store writer refused the sample. The sample
	// was still broadcast.
	Queued bool
}

// Pipeline is the single processing path shared by both gateways.
type Pipeline struct {
	deps   Deps
	bounds Bounds
	locks  [lockStripes]sync.Mutex
	now    func() time.Time
	newID  func() string
}

// NewPipeline wires a pipeline. Zero bounds fall back to 180 on both axes.
func NewPipeline(deps Deps, bounds Bounds) *Pipeline {
	if bounds.Latitude <= 0 {
		bounds.Latitude = 180
	}
	if bounds.Longitude <= 0 {
		bounds.Longitude = 180
	}
	return &Pipeline{
		deps:   deps,
		bounds: bounds,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Process runs one raw sample through the pipeline. The returned error is
// telemetry.ErrMissingVehicleID or a *telemetry.ValidationError; nothing
// downstream of validation fails the call.
func (p *Pipeline) Process(raw models.RawSample) (Result, error) {
	start := time.Now()
	transport := string(raw.Transport)

	sample, err := telemetry.Normalize(raw, telemetry.Options{
		LatitudeBound:  p.bounds.Latitude,
		LongitudeBound: p.bounds.Longitude,
		MinSpeed:       p.deps.Settings.MinSpeed(),
	})
	if err != nil {
		metrics.TelemetrySamples.WithLabelValues(transport, "rejected").Inc()
		return Result{}, err
	}

	enriched := models.Enrich(sample, p.newID(), p.now())
	enriched.GasAlert = enriched.GasLevel >= p.deps.Settings.GasAlertThreshold()

	res := p.classify(enriched)

	metrics.TelemetrySamples.WithLabelValues(transport, "accepted").Inc()
	metrics.MotionStatus.WithLabelValues(string(res.Sample.Status)).Inc()
	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	return res, nil
}

// classify runs detection, motion and fan-out under the vehicle's stripe
// lock. The lock is released even if a collaborator panics.
func (p *Pipeline) classify(s models.EnrichedSample) Result {
	mu := p.lockFor(s.VehicleID)
	mu.Lock()
	defer mu.Unlock()

	events := p.deps.Detector.Evaluate(s.VehicleID, s.Latitude, s.Longitude, s.CreatedAt)
	s.Status = p.deps.Motion.Classify(s.VehicleID, s.Speed, s.CreatedAt)
	return p.fanOut(s, events)
}

// fanOut runs with the vehicle lock held so events for one vehicle reach
// subscribers in the order they were detected.
func (p *Pipeline) fanOut(s models.EnrichedSample, events []models.ZoneEvent) Result {
	res := Result{Sample: s, Events: events}

	res.Queued = p.deps.Writer.EnqueueSample(s)
	p.deps.Cache.Set(cache.VehicleKey(s.VehicleID), s)

	for _, e := range events {
		metrics.ZoneEvents.WithLabelValues(string(e.EventType)).Inc()
		logging.Info().
			Str("vehicle_id", e.VehicleID).
			Str("zone", e.ZoneName).
			Str("event", string(e.EventType)).
			Msg("zone transition")

		p.deps.Writer.EnqueueZoneEvent(e)
		p.deps.Hub.BroadcastZoneEvent(e)
		if p.deps.Publisher != nil {
			p.deps.Publisher.PublishZoneEvent(e)
		}
	}
	if len(events) > 0 {
		p.deps.Cache.Delete(cache.KeyGeofenceEvents)
	}

	p.deps.Hub.BroadcastTelemetry(s)
	if p.deps.Publisher != nil {
		p.deps.Publisher.PublishTelemetry(s)
	}
	return res
}

func (p *Pipeline) lockFor(vehicleID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(vehicleID))
	return &p.locks[h.Sum32()%lockStripes]
}

// IsRejection reports whether err came from validation rather than from a
// fault in the server.
func IsRejection(err error) bool {
	var verr *telemetry.ValidationError
	return errors.Is(err, telemetry.ErrMissingVehicleID) ||
		errors.Is(err, telemetry.ErrMalformedFrame) ||
		errors.As(err, &verr)
}
