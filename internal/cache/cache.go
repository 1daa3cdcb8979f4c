// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ifauzeee/BipolTracker/internal/logging"
	"github.com/ifauzeee/BipolTracker/internal/metrics"
)

// Entry is a cached value and the time it was stored.
type Entry struct {
	Data       interface{}
	LastUpdate time.Time
}

// Cache is a thread-safe TTL cache. An entry is a hit only while
// now - LastUpdate < TTL; expired entries are removed lazily on Get and in
// bulk by Serve.
type Cache struct {
	mu            sync.RWMutex
	entries       map[string]Entry
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	// statsMu nests inside mu when both are held.
	statsMu sync.Mutex
	stats   Stats
}

// Stats tracks cache performance.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	TotalKeys int64
	LastSweep time.Time
}

var _ Cacher = (*Cache)(nil)

// New creates a cache with the given TTL. Expired entries are swept every
// sweepInterval while Serve runs.
func New(ttl, sweepInterval time.Duration) *Cache {
	return &Cache{
		entries:       make(map[string]Entry),
		ttl:           ttl,
		sweepInterval: sweepInterval,
		now:           time.Now,
	}
}

// Get implements Cacher.
func (c *Cache) Get(key string) (interface{}, bool) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && now.Sub(entry.LastUpdate) < c.ttl {
		c.record(true, 0)
		return entry.Data, true
	}

	if ok {
		c.mu.Lock()
		// Re-check under the write lock; a Set may have raced in.
		if cur, still := c.entries[key]; still && now.Sub(cur.LastUpdate) >= c.ttl {
			delete(c.entries, key)
			c.record(false, 1)
		} else {
			c.record(false, 0)
		}
		c.mu.Unlock()
		return nil, false
	}

	c.record(false, 0)
	return nil, false
}

// Set implements Cacher.
func (c *Cache) Set(key string, value interface{}) {
	c.mu.Lock()
	c.entries[key] = Entry{Data: value, LastUpdate: c.now()}
	c.mu.Unlock()
}

// Delete implements Cacher.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.statsMu.Lock()
		c.stats.Evictions++
		c.statsMu.Unlock()
	}
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetStats returns a snapshot of the counters.
func (c *Cache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	s := c.stats
	s.TotalKeys = int64(len(c.entries))
	return s
}

// HitRate returns hits as a percentage of lookups.
func (c *Cache) HitRate() float64 {
	s := c.GetStats()
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

func (c *Cache) record(hit bool, evicted int64) {
	metrics.RecordCacheLookup(hit)
	c.statsMu.Lock()
	if hit {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	c.stats.Evictions += evicted
	c.statsMu.Unlock()
}

// Sweep removes all expired entries.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.LastUpdate) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	c.statsMu.Lock()
	c.stats.Evictions += int64(removed)
	c.stats.LastSweep = now
	c.statsMu.Unlock()
	return removed
}

// Serve sweeps on the configured interval until ctx is cancelled.
func (c *Cache) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				logging.Trace().Int("removed", n).Msg("Cache swept")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (c *Cache) String() string {
	return "cache-sweeper"
}
