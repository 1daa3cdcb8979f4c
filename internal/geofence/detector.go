// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

// Package geofence tracks which circular zone each vehicle is in and emits
// ENTER and EXIT events when that changes.
//
// Membership starts empty for every vehicle and is never replayed from
// history. Zone definitions are swapped in wholesale by the Refresher; a
// failed reload keeps the previous set.
package geofence

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ifauzeee/BipolTracker/internal/models"
)

// Policy decides which zone wins when a point lies in more than one.
type Policy string

const (
	// FirstMatch picks the first containing zone in load order.
	FirstMatch Policy = "first_match"

	// NearestCenter picks the containing zone whose center is closest,
	// falling back to load order on ties.
	NearestCenter Policy = "nearest_center"
)

// membership is the zone a vehicle is currently in. The name is kept so an
// EXIT can be labelled even after the zone was deleted.
type membership struct {
	zoneID   string
	zoneName string
}

// Detector holds the loaded zones and per-vehicle membership.
type Detector struct {
	mu      sync.Mutex
	zones   []models.Zone
	loaded  bool
	members map[string]membership
	policy  Policy
	newID   func() string
}

// NewDetector returns a Detector with no zones loaded. Unknown policies fall
// back to FirstMatch.
func NewDetector(policy Policy) *Detector {
	if policy != NearestCenter {
		policy = FirstMatch
	}
	return &Detector{
		members: make(map[string]membership),
		policy:  policy,
		newID:   uuid.NewString,
	}
}

// SetZones replaces the zone set. The slice order is the load order.
func (d *Detector) SetZones(zones []models.Zone) {
	cp := make([]models.Zone, len(zones))
	copy(cp, zones)

	d.mu.Lock()
	d.zones = cp
	d.loaded = true
	d.mu.Unlock()
}

// Zones returns a copy of the current zone set.
func (d *Detector) Zones() []models.Zone {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make([]models.Zone, len(d.zones))
	copy(cp, d.zones)
	return cp
}

// Loaded reports whether any zone set was ever installed.
func (d *Detector) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// Membership returns the zone id the vehicle is in, if any.
func (d *Detector) Membership(vehicleID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.members[vehicleID]
	return m.zoneID, ok
}

// Evaluate applies one accepted sample and returns the events it caused:
// nothing, a single ENTER or EXIT, or EXIT followed by ENTER.
func (d *Detector) Evaluate(vehicleID string, lat, lon float64, at time.Time) []models.ZoneEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	candidate, inZone := d.match(lat, lon)
	current, wasIn := d.members[vehicleID]

	if inZone == wasIn && (!inZone || candidate.ID == current.zoneID) {
		return nil
	}

	var events []models.ZoneEvent
	if wasIn {
		events = append(events, models.ZoneEvent{
			ID:        d.newID(),
			VehicleID: vehicleID,
			ZoneID:    current.zoneID,
			ZoneName:  current.zoneName,
			EventType: models.ZoneExit,
			Timestamp: at,
		})
		delete(d.members, vehicleID)
	}
	if inZone {
		events = append(events, models.ZoneEvent{
			ID:        d.newID(),
			VehicleID: vehicleID,
			ZoneID:    candidate.ID,
			ZoneName:  candidate.Name,
			EventType: models.ZoneEnter,
			Timestamp: at,
		})
		d.members[vehicleID] = membership{zoneID: candidate.ID, zoneName: candidate.Name}
	}
	return events
}

// match must be called with d.mu held.
func (d *Detector) match(lat, lon float64) (models.Zone, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, z := range d.zones {
		dist := Distance(lat, lon, z.Latitude, z.Longitude)
		if dist > z.RadiusM {
			continue
		}
		if d.policy == FirstMatch {
			return z, true
		}
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return models.Zone{}, false
	}
	return d.zones[best], true
}
