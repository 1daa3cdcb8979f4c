// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/ifauzeee/BipolTracker/internal/models"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

var errEmptyBody = errors.New("request body is empty")

// flexValue accepts a JSON number or string and keeps its text. Trackers
// post numeric fields either way; the normalizer decides what parses.
type flexValue string

func (f *flexValue) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	switch c := b[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexValue(s)
		return nil
	case c == '-' || (c >= '0' && c <= '9'):
		*f = flexValue(b)
		return nil
	default:
		return fmt.Errorf("expected number or string, got %s", b)
	}
}

// trackRequest is the body of POST /api/track. bus_id is the field name
// deployed trackers send; vehicle_id is accepted as well.
type trackRequest struct {
	BusID     flexValue `json:"bus_id" validate:"max=64"`
	VehicleID flexValue `json:"vehicle_id" validate:"max=64"`
	Latitude  flexValue `json:"latitude" validate:"max=32"`
	Longitude flexValue `json:"longitude" validate:"max=32"`
	Speed     flexValue `json:"speed" validate:"max=32"`
	GasLevel  flexValue `json:"gas_level" validate:"max=32"`
	Occupancy flexValue `json:"occupancy" validate:"max=64"`
}

func (t trackRequest) raw() models.RawSample {
	id := t.BusID
	if id == "" {
		id = t.VehicleID
	}
	return models.RawSample{
		VehicleID: string(id),
		Latitude:  string(t.Latitude),
		Longitude: string(t.Longitude),
		Speed:     string(t.Speed),
		GasLevel:  string(t.GasLevel),
		Occupancy: string(t.Occupancy),
		Transport: models.TransportHTTP,
	}
}

// zoneRequest is the body of POST /api/admin/geofences. The coordinate
// range is narrowed further by the configured bounds.
type zoneRequest struct {
	Name      string   `json:"name" validate:"required,notblank,max=100"`
	Latitude  *float64 `json:"latitude" validate:"required,gte=-180,lte=180"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Radius    float64  `json:"radius" validate:"gte=1,lte=100000"`
}

// settingsRequest is the body of PUT /api/admin/settings.
type settingsRequest struct {
	Settings map[string]flexValue `json:"settings" validate:"required,min=1,max=16,dive,keys,notblank,max=64,endkeys,max=32"`
}

func (s settingsRequest) updates() map[string]string {
	out := make(map[string]string, len(s.Settings))
	for k, v := range s.Settings {
		out[k] = string(v)
	}
	return out
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}
