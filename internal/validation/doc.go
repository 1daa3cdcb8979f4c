// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

// Package validation validates decoded request bodies with
// go-playground/validator v10.
//
// A single validator instance is shared process-wide; it caches struct
// metadata after the first use. Errors name fields by their JSON tag and are
// converted with ToAPIError into the code, message and details of the API
// error envelope:
//
//	type createZoneRequest struct {
//	    Name   string  `json:"name" validate:"required,notblank,max=100"`
//	    Radius float64 `json:"radius" validate:"gte=1,lte=100000"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    rw.ValidationError(apiErr.Message, apiErr.Details)
//	    return
//	}
//
// Custom tags:
//   - notblank: string is non-empty after trimming spaces
package validation
