// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the counter and starts the expiry on the
// first hit of a window. Returns {count, pttl}.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisStore shares limiter state between replicas. Key expiry takes the
// place of the reaper.
type RedisStore struct {
	client redis.Scripter
	prefix string
	now    func() time.Time
}

// NewRedisStore wraps a connected client.
func NewRedisStore(client redis.Scripter, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// Hit implements Store.
func (s *RedisStore) Hit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	res, err := fixedWindowScript.Run(ctx, s.client, []string{s.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	d := Decision{
		Limit:   limit,
		ResetAt: s.now().Add(ttl),
	}
	if count > limit {
		d.RetryAfter = ttl
		return d, nil
	}
	d.Allowed = true
	d.Remaining = limit - count
	return d, nil
}
