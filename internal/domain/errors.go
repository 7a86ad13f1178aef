// Package domain defines the core types, repository ports and errors of the
// La-à-La dashboard API.
package domain

import (
	"errors"
	"fmt"
)

// ValidationError indicates invalid input. The message names the offending field.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AuthenticationError indicates a missing or invalid credential.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string { return e.Message }

// AccessDeniedError indicates a valid identity without sufficient permission.
type AccessDeniedError struct {
	Message string
}

func (e *AccessDeniedError) Error() string { return e.Message }

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ConflictError indicates a state conflict (duplicate, already processed).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// FeatureDisabledError indicates the requested feature is switched off.
type FeatureDisabledError struct {
	Feature string
}

func (e *FeatureDisabledError) Error() string {
	return fmt.Sprintf("feature %s is disabled", e.Feature)
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrAuthentication creates an AuthenticationError with a formatted message.
func ErrAuthentication(format string, args ...interface{}) *AuthenticationError {
	return &AuthenticationError{Message: fmt.Sprintf(format, args...)}
}

// ErrAccessDenied creates an AccessDeniedError with a formatted message.
func ErrAccessDenied(format string, args ...interface{}) *AccessDeniedError {
	return &AccessDeniedError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is, or wraps, a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
