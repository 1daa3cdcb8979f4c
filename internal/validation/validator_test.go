// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package validation

import (
	"strings"
	"testing"
)

type zoneBody struct {
	Name      string  `json:"name" validate:"required,notblank,max=100"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Radius    float64 `json:"radius" validate:"gte=1,lte=100000"`
	Hidden    string  `json:"-" validate:"omitempty,uuid"`
	NoTag     int     `validate:"min=0"`
}

func validZone() zoneBody {
	return zoneBody{Name: "Campus", Latitude: -6.2001, Longitude: 106.8001, Radius: 50}
}

func TestGetValidatorSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator() should return the same instance")
	}
}

func TestValidateStructValid(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*zoneBody)
	}{
		{"typical", func(*zoneBody) {}},
		{"minimum radius", func(z *zoneBody) { z.Radius = 1 }},
		{"maximum radius", func(z *zoneBody) { z.Radius = 100000 }},
		{"name at limit", func(z *zoneBody) { z.Name = strings.Repeat("a", 100) }},
		{"edge coordinates", func(z *zoneBody) { z.Latitude, z.Longitude = -90, 180 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z := validZone()
			tt.mod(&z)
			if err := ValidateStruct(&z); err != nil {
				t.Errorf("ValidateStruct() = %v", err)
			}
		})
	}
}

func TestValidateStructInvalid(t *testing.T) {
	tests := []struct {
		name      string
		mod       func(*zoneBody)
		wantField string
		wantTag   string
	}{
		{"missing name", func(z *zoneBody) { z.Name = "" }, "name", "required"},
		{"blank name", func(z *zoneBody) { z.Name = "   " }, "name", "notblank"},
		{"long name", func(z *zoneBody) { z.Name = strings.Repeat("a", 101) }, "name", "max"},
		{"latitude high", func(z *zoneBody) { z.Latitude = 91 }, "latitude", "lte"},
		{"longitude low", func(z *zoneBody) { z.Longitude = -181 }, "longitude", "gte"},
		{"zero radius", func(z *zoneBody) { z.Radius = 0 }, "radius", "gte"},
		{"untagged field", func(z *zoneBody) { z.NoTag = -1 }, "NoTag", "min"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z := validZone()
			tt.mod(&z)
			err := ValidateStruct(&z)
			if err == nil {
				t.Fatal("expected validation error")
			}
			for _, e := range err.Errors() {
				if e.Field() == tt.wantField && e.Tag() == tt.wantTag {
					return
				}
			}
			t.Errorf("want %s/%s, got %v", tt.wantField, tt.wantTag, err.Errors())
		})
	}
}

func TestToAPIErrorSingle(t *testing.T) {
	z := validZone()
	z.Radius = 0

	apiErr := ValidateStruct(&z).ToAPIError()
	if apiErr.Code != CodeValidationFailed {
		t.Errorf("Code = %s", apiErr.Code)
	}
	if apiErr.Message != "radius must be greater than or equal to 1" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if apiErr.Details["field"] != "radius" {
		t.Errorf("Details = %v", apiErr.Details)
	}
}

func TestToAPIErrorMultiple(t *testing.T) {
	z := validZone()
	z.Name = ""
	z.Latitude = 100

	apiErr := ValidateStruct(&z).ToAPIError()
	fields, ok := apiErr.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 2 {
		t.Fatalf("Details = %v", apiErr.Details)
	}
	if !strings.Contains(apiErr.Message, "name is required") ||
		!strings.Contains(apiErr.Message, "latitude must be less than or equal to 90") {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestToAPIErrorEmpty(t *testing.T) {
	apiErr := (&RequestValidationError{}).ToAPIError()
	if apiErr.Code != CodeValidationFailed || apiErr.Message != "Validation failed" {
		t.Errorf("got %+v", apiErr)
	}
	if (&RequestValidationError{}).Error() != "validation failed" {
		t.Error("empty error message")
	}
}

func TestValidateStructNonStruct(t *testing.T) {
	err := ValidateStruct("not a struct")
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Errors()[0].Field() != "unknown" {
		t.Errorf("field = %s", err.Errors()[0].Field())
	}
}

func TestTranslateStringLengths(t *testing.T) {
	type body struct {
		Note string `json:"note" validate:"min=2,max=3"`
	}
	if msg := ValidateStruct(&body{Note: "a"}).Error(); msg != "note must be at least 2 characters" {
		t.Errorf("min message = %q", msg)
	}
	if msg := ValidateStruct(&body{Note: "abcd"}).Error(); msg != "note must be at most 3 characters" {
		t.Errorf("max message = %q", msg)
	}
}
