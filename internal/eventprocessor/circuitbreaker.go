// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package eventprocessor

import (
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/metrics"
)

// CircuitBreakerConfig tunes the publish breaker.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // Allowed in half-open state
	Interval         time.Duration // Reset interval for counts
	Timeout          time.Duration // Time to stay open
	FailureThreshold uint32        // Consecutive failures before opening
}

// DefaultCircuitBreakerConfig returns production defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// NewCircuitBreaker creates a breaker that reports transitions to metrics.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[struct{}] {
	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
		},
	})
}
