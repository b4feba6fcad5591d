package model

import "fmt"

// ConfigurationError reports a missing or invalid setting detected while
// constructing a component. It is fatal and never retried.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// NewConfigurationError creates a ConfigurationError for the given field.
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

// ValidationError reports invalid input to a single call, such as an empty
// text passed to the embedding client. The caller decides how to proceed.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Op, e.Reason)
}

// NewValidationError creates a ValidationError for the given operation.
func NewValidationError(op, reason string) *ValidationError {
	return &ValidationError{Op: op, Reason: reason}
}

// TransientError reports a provider call that kept failing after the retry
// budget was spent. It is fatal to the current batch or query, not to the
// whole run.
type TransientError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider error: %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

// Unwrap exposes the last underlying provider error.
func (e *TransientError) Unwrap() error { return e.Err }
