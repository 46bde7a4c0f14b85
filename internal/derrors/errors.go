// Package derrors provides the coded error types used across regiontrace.
package derrors

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every NotFoundError through errors.Is.
var ErrNotFound = errors.New("not found")

// CodedError is the base interface for all regiontrace errors
type CodedError interface {
	error
	// Code returns a unique error code for programmatic error handling
	Code() string
}

// baseError provides common functionality for all regiontrace errors
type baseError struct {
	code    string
	message string
	cause   error
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Code() string {
	return e.code
}

func (e *baseError) Unwrap() error {
	return e.cause
}

// NotFoundError is returned when a named region or resource is missing
type NotFoundError struct {
	baseError
	Resource string
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string, message string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			code:    "NOT_FOUND",
			message: message,
		},
		Resource: resource,
	}
}

// Is reports a match against ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConfigurationError represents errors in configuration files
type ConfigurationError struct {
	baseError
	Path string
}

// NewConfigurationError creates a new configuration error
func NewConfigurationError(path string, message string, cause error) *ConfigurationError {
	return &ConfigurationError{
		baseError: baseError{
			code:    "CONFIG_ERROR",
			message: message,
			cause:   cause,
		},
		Path: path,
	}
}

// BackendError represents failures setting up or flushing a measurement backend
type BackendError struct {
	baseError
	Backend string
}

// NewBackendError creates a new backend error
func NewBackendError(backend string, message string, cause error) *BackendError {
	return &BackendError{
		baseError: baseError{
			code:    "BACKEND_ERROR",
			message: message,
			cause:   cause,
		},
		Backend: backend,
	}
}

// ReplayError represents a malformed or failing event in a replayed stream
type ReplayError struct {
	baseError
	Line int
}

// NewReplayError creates a new replay error for the given 1-based line
func NewReplayError(line int, message string, cause error) *ReplayError {
	return &ReplayError{
		baseError: baseError{
			code:    "REPLAY_ERROR",
			message: fmt.Sprintf("line %d: %s", line, message),
			cause:   cause,
		},
		Line: line,
	}
}

// ValidationError represents errors during validation
type ValidationError struct {
	baseError
	Field string
}

// NewValidationError creates a new validation error
func NewValidationError(field string, message string, cause error) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			code:    "VALIDATION_ERROR",
			message: message,
			cause:   cause,
		},
		Field: field,
	}
}
