package models

import "errors"

// Error taxonomy codes carried in action envelopes and log lines.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeAPIError         = "API_ERROR"
	CodeTimeout          = "TIMEOUT"
	CodeParseError       = "PARSE_ERROR"
	CodeInvalidState     = "INVALID_STATE"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeInternal         = "INTERNAL_ERROR"
)

var (
	// ErrNotFound is returned when an entity is not found.
	ErrNotFound = errors.New("entity not found")

	// ErrMissingTenant is returned for events lacking system.tenant_id.
	ErrMissingTenant = errors.New("event has no system.tenant_id")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
