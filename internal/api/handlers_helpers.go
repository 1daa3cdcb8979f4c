// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// sanitizeLogValue escapes control characters so client input cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// getIntParam reads an integer query parameter. Missing or unparsable values
// give def; parsed values are clamped to [lo, hi].
func getIntParam(r *http.Request, name string, def, lo, hi int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// cached returns the value under key, loading and storing it on a miss.
// Load errors are not cached.
func (h *Handler) cached(key string, load func() (interface{}, error)) (interface{}, error) {
	if v, ok := h.cache.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	h.cache.Set(key, v)
	return v, nil
}
