// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

// Package telemetry turns raw tracker input into validated samples.
//
// Normalize is a pure function: the same raw input and Options always
// produce the same result, and feeding a normalized sample back through it
// is a no-op. Coordinates that fail to parse or fall outside the configured
// bounds reject the sample; speed and gas readings out of range are zeroed.
package telemetry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ifauzeee/BipolTracker/internal/models"
)

const (
	// MaxVehicleIDLength bounds vehicle ids after sanitization.
	MaxVehicleIDLength = 20

	// MaxOccupancyLength bounds the optional occupancy tag.
	MaxOccupancyLength = 20

	MaxSpeed    = 500.0
	MaxGasLevel = 10000
)

var (
	// ErrMissingVehicleID means the id was absent or empty after sanitization.
	ErrMissingVehicleID = errors.New("vehicle_id is required")

	// ErrMalformedFrame means a datagram could not be split into fields.
	ErrMalformedFrame = errors.New("malformed frame")
)

// ValidationError reports a field that rejected the whole sample.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

// Options are the bounds and thresholds Normalize applies.
type Options struct {
	LatitudeBound  float64
	LongitudeBound float64

	// MinSpeed zeroes speeds below it to suppress GPS jitter while parked.
	MinSpeed float64
}

// Normalize validates raw and returns a clean sample, or an error that is
// either ErrMissingVehicleID or a *ValidationError.
func Normalize(raw models.RawSample, opts Options) (models.TelemetrySample, error) {
	id := SanitizeID(raw.VehicleID, MaxVehicleIDLength)
	if id == "" {
		return models.TelemetrySample{}, ErrMissingVehicleID
	}

	lat, err := parseCoordinate("latitude", raw.Latitude, opts.LatitudeBound)
	if err != nil {
		return models.TelemetrySample{}, err
	}
	lon, err := parseCoordinate("longitude", raw.Longitude, opts.LongitudeBound)
	if err != nil {
		return models.TelemetrySample{}, err
	}

	speed := parseSpeed(raw.Speed)
	if speed < opts.MinSpeed {
		speed = 0
	}

	return models.TelemetrySample{
		VehicleID: id,
		Latitude:  lat,
		Longitude: lon,
		Speed:     speed,
		GasLevel:  parseGasLevel(raw.GasLevel),
		Occupancy: SanitizeID(raw.Occupancy, MaxOccupancyLength),
		Transport: raw.Transport,
	}, nil
}

// SanitizeID keeps letters, digits, space, '-', '_' and '.', trims the
// result and cuts it to max runes.
func SanitizeID(s string, max int) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == ' ', r == '-', r == '_', r == '.':
			return r
		default:
			return -1
		}
	}, s)
	cleaned = strings.TrimSpace(cleaned)
	if utf8.RuneCountInString(cleaned) > max {
		cleaned = strings.TrimSpace(string([]rune(cleaned)[:max]))
	}
	return cleaned
}

func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseCoordinate(field, s string, bound float64) (float64, error) {
	v, ok := parseFinite(s)
	if !ok {
		return 0, &ValidationError{Field: field, Value: s, Reason: "not a number"}
	}
	if v < -bound || v > bound {
		return 0, &ValidationError{Field: field, Value: s, Reason: fmt.Sprintf("outside [-%g, %g]", bound, bound)}
	}
	return v, nil
}

func parseSpeed(s string) float64 {
	v, ok := parseFinite(s)
	if !ok || v < 0 || v > MaxSpeed {
		return 0
	}
	return v
}

// parseGasLevel accepts integers and truncates decimal readings, which some
// sensor firmware sends.
func parseGasLevel(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n > MaxGasLevel {
			return 0
		}
		return n
	}
	v, ok := parseFinite(s)
	if !ok || v < 0 || v >= MaxGasLevel+1 {
		return 0
	}
	return int(v)
}
