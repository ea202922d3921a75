// Package apperrors holds the error taxonomy shared by provisioning and the
// client session driver.
package apperrors

import (
	"fmt"
	"strings"
)

// ConfigurationError reports missing or invalid process configuration.
// Fatal for the request; retrying without redeploying cannot help.
type ConfigurationError struct {
	Missing []string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "missing configuration: " + strings.Join(e.Missing, ", ")
}

// MissingConfig returns a ConfigurationError naming the absent keys.
func MissingConfig(keys ...string) *ConfigurationError {
	return &ConfigurationError{Missing: keys}
}

// PayloadError reports an absent or incomplete application payload.
type PayloadError struct {
	Field   string
	Message string
	Cause   error
}

func (e *PayloadError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Field != "" {
		return e.Field + " is required"
	}
	return "invalid payload"
}

func (e *PayloadError) Unwrap() error { return e.Cause }

// MissingField returns a PayloadError for a required field.
func MissingField(field string) *PayloadError {
	return &PayloadError{Field: field, Message: field + " not found in the request body"}
}

// DispatchUnavailable reports a failed call to the agent orchestration
// service. Retryable is informational; nothing retries automatically.
type DispatchUnavailable struct {
	Status    int
	Retryable bool
	Cause     error
}

func (e *DispatchUnavailable) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("agent dispatch unavailable (status %d): %v", e.Status, e.Cause)
	}
	return fmt.Sprintf("agent dispatch unavailable: %v", e.Cause)
}

func (e *DispatchUnavailable) Unwrap() error { return e.Cause }

// TransportError reports a realtime session that failed to open or dropped.
type TransportError struct {
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("realtime transport %s: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }
