// BipolTracker - Campus Shuttle Telemetry and Geofence Tracking
// Copyright 2026 BipolTracker Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ifauzeee/BipolTracker

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// CodeValidationFailed is the API error code for rejected request bodies.
const CodeValidationFailed = "VALIDATION_FAILED"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidationError is one field that failed validation.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the JSON name of the field that failed.
func (e *ValidationError) Field() string {
	return e.field
}

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string {
	return e.tag
}

// Param returns the tag parameter, e.g. "100" for "max=100".
func (e *ValidationError) Param() string {
	return e.param
}

// Value returns the rejected value.
func (e *ValidationError) Value() interface{} {
	return e.value
}

func (e *ValidationError) Error() string {
	return e.message
}

// RequestValidationError collects the field errors of one request body.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the individual field errors.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, 0, len(ve.errors))
	for _, err := range ve.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// APIError is the code, message and details placed in the response envelope.
type APIError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

// ToAPIError renders the errors for the response envelope.
func (ve *RequestValidationError) ToAPIError() *APIError {
	switch len(ve.errors) {
	case 0:
		return &APIError{Code: CodeValidationFailed, Message: "Validation failed"}
	case 1:
		err := ve.errors[0]
		return &APIError{
			Code:    CodeValidationFailed,
			Message: err.message,
			Details: map[string]interface{}{
				"field": err.field,
				"tag":   err.tag,
				"value": err.value,
			},
		}
	}

	fields := make([]map[string]interface{}, len(ve.errors))
	messages := make([]string, 0, len(ve.errors))
	for i, err := range ve.errors {
		fields[i] = map[string]interface{}{
			"field":   err.field,
			"tag":     err.tag,
			"message": err.message,
		}
		messages = append(messages, err.message)
	}
	return &APIError{
		Code:    CodeValidationFailed,
		Message: strings.Join(messages, "; "),
		Details: map[string]interface{}{"fields": fields},
	}
}

// GetValidator returns the shared validator. Field names in errors are the
// JSON names of the fields.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})

		// notblank rejects strings that are empty after trimming spaces.
		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	})
	return validate
}

// ValidateStruct validates s and returns nil or the collected field errors.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &RequestValidationError{
			errors: []ValidationError{{field: "unknown", tag: "unknown", message: err.Error()}},
		}
	}

	fieldErrors := make([]ValidationError, len(validationErrs))
	for i, fieldErr := range validationErrs {
		fieldErrors[i] = ValidationError{
			field:   fieldErr.Field(),
			tag:     fieldErr.Tag(),
			param:   fieldErr.Param(),
			value:   fieldErr.Value(),
			message: translateError(fieldErr),
		}
	}
	return &RequestValidationError{errors: fieldErrors}
}

var errorMessageTemplates = map[string]string{
	"required":  "%s is required",
	"notblank":  "%s must not be blank",
	"latitude":  "%s must be a valid latitude (-90 to 90)",
	"longitude": "%s must be a valid longitude (-180 to 180)",
	"uuid":      "%s must be a UUID",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
}

func translateError(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}

	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
