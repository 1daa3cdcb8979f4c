// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

// Package metrics defines the Prometheus instruments exported at /metrics.
//
// Instruments are package-level promauto vars registered on the default
// registry. The Record* helpers keep label spelling in one place.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion
	TelemetrySamples = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_samples_total",
			Help: "Telemetry samples seen by the pipeline",
		},
		[]string{"transport", "result"}, // result: accepted, rejected, malformed
	)

	UDPDatagrams = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "udp_datagrams_total",
			Help: "Datagrams read by the UDP listener",
		},
		[]string{"result"}, // received, throttled, malformed, rejected
	)

	LegacyForwards = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "legacy_forward_total",
			Help: "Frames forwarded to the legacy tracker listener",
		},
		[]string{"result"}, // sent, dropped, error
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_process_duration_seconds",
			Help:    "Time spent processing one accepted sample",
			Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .05},
		},
	)

	// Geofence and motion
	ZoneEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zone_events_total",
			Help: "Zone transition events emitted",
		},
		[]string{"event_type"},
	)

	ZonesLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zones_loaded",
			Help: "Zones currently used by the detector",
		},
	)

	ZoneRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zone_refresh_total",
			Help: "Zone reloads from the store",
		},
		[]string{"result"},
	)

	MotionStatus = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motion_status_total",
			Help: "Motion classifications produced",
		},
		[]string{"status"},
	)

	// Broadcast
	BroadcastMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_messages_total",
			Help: "Messages accepted by the broadcast hub",
		},
		[]string{"type"},
	)

	BroadcastDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_dropped_total",
			Help: "Messages dropped because the hub or a client buffer was full",
		},
		[]string{"type"},
	)

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Connected websocket subscribers",
		},
	)

	// Store
	StoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_writes_total",
			Help: "Asynchronous store writes by outcome",
		},
		[]string{"kind", "result"}, // result: success, failure, rejected
	)

	StoreWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_write_duration_seconds",
			Help:    "Duration of asynchronous store writes including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	StoreWriteDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_write_dropped_total",
			Help: "Writes dropped because the queue was full or closed",
		},
		[]string{"kind"},
	)

	StoreWriteQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_write_queue_depth",
			Help: "Writes waiting in the queue",
		},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Duration of synchronous store queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_query_errors_total",
			Help: "Synchronous store query failures",
		},
		[]string{"operation"},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Rate limiting and cache
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_rejections_total",
			Help: "Requests rejected by the fixed-window limiter",
		},
		[]string{"class"},
	)

	RateLimitRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limit_records",
			Help: "Identity records held by the in-memory limiter",
		},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Read cache lookups",
		},
		[]string{"result"}, // hit, miss
	)

	// Retention and settings
	RetentionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_runs_total",
			Help: "Retention sweeps by outcome",
		},
		[]string{"result"},
	)

	RetentionDeletedRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_deleted_rows_total",
			Help: "Samples deleted by the retention reaper",
		},
	)

	SettingsRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settings_refresh_total",
			Help: "Runtime settings reloads from the store",
		},
		[]string{"result"},
	)

	// Event bus
	EventPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_publish_total",
			Help: "Messages published to the event bus",
		},
		[]string{"topic", "result"}, // success, failure, dropped
	)

	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "HTTP requests in flight",
		},
	)
)

// RecordSample counts one sample outcome.
func RecordSample(transport, result string) {
	TelemetrySamples.WithLabelValues(transport, result).Inc()
}

// RecordStoreWrite records the outcome and duration of one queued write.
func RecordStoreWrite(kind, result string, duration time.Duration) {
	StoreWrites.WithLabelValues(kind, result).Inc()
	StoreWriteDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordStoreQuery records a synchronous query.
func RecordStoreQuery(operation string, duration time.Duration, err error) {
	StoreQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(hit bool) {
	if hit {
		CacheRequests.WithLabelValues("hit").Inc()
		return
	}
	CacheRequests.WithLabelValues("miss").Inc()
}

// RecordAPIRequest records an HTTP request.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest moves the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordCircuitBreakerTransition records a breaker moving between the
// "closed", "half-open" and "open" states.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

func breakerStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}
