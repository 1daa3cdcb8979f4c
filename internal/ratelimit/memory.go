// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/metrics"
)

type record struct {
	windowStart time.Time
	window      time.Duration
	count       int
}

// MemoryStore keeps records in process memory. Records are removed by Reap
// once their window is more than twice its length old.
type MemoryStore struct {
	mu           sync.Mutex
	records      map[string]*record
	now          func() time.Time
	reapInterval time.Duration
}

// NewMemoryStore creates an empty store. reapInterval is used by Serve.
func NewMemoryStore(reapInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		records:      make(map[string]*record),
		now:          time.Now,
		reapInterval: reapInterval,
	}
}

// Hit implements Store.
func (s *MemoryStore) Hit(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || now.Sub(rec.windowStart) > window {
		s.records[key] = &record{windowStart: now, window: window, count: 1}
		return Decision{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - 1,
			ResetAt:   now.Add(window),
		}, nil
	}

	resetAt := rec.windowStart.Add(window)
	if rec.count >= limit {
		return Decision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			RetryAfter: resetAt.Sub(now),
			ResetAt:    resetAt,
		}, nil
	}

	rec.count++
	return Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - rec.count,
		ResetAt:   resetAt,
	}, nil
}

// Reap deletes records whose window started more than two windows ago and
// returns how many were removed.
func (s *MemoryStore) Reap() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, rec := range s.records {
		if now.Sub(rec.windowStart) > 2*rec.window {
			delete(s.records, key)
			removed++
		}
	}
	metrics.RateLimitRecords.Set(float64(len(s.records)))
	return removed
}

// Len returns the number of live records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Serve runs Reap on the configured interval until ctx is cancelled.
func (s *MemoryStore) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := s.Reap(); n > 0 {
				logging.Debug().Int("removed", n).Msg("Rate limit records reaped")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *MemoryStore) String() string {
	return "ratelimit-reaper"
}
