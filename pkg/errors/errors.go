// Package errors defines the error taxonomy shared across the drafting
// pipeline. Errors carry an HTTP-equivalent status code so the serving layer
// can surface them without inspecting concrete types.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// AppError is the base error type for all pipeline errors.
type AppError struct {
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Timestamp  time.Time `json:"timestamp"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is/As chains.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// ValidationError reports malformed or missing input. It maps to a 4xx
// condition and is never retried automatically.
type ValidationError struct {
	AppError
}

// NewValidation creates a ValidationError with the given message.
func NewValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{AppError{
		Message:    fmt.Sprintf(format, args...),
		StatusCode: http.StatusBadRequest,
		Timestamp:  time.Now(),
	}}
}

// NotFoundError reports a missing resource (task artifact, document).
type NotFoundError struct {
	AppError
}

// NewNotFound creates a NotFoundError with the given message.
func NewNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{AppError{
		Message:    fmt.Sprintf(format, args...),
		StatusCode: http.StatusNotFound,
		Timestamp:  time.Now(),
	}}
}

// InternalError reports a downstream infrastructure failure (vector index
// unreachable, LLM call failed, document conversion failed). It maps to a
// 5xx condition.
type InternalError struct {
	AppError
}

// NewInternal creates an InternalError with the given message.
func NewInternal(format string, args ...interface{}) *InternalError {
	return &InternalError{AppError{
		Message:    fmt.Sprintf(format, args...),
		StatusCode: http.StatusInternalServerError,
		Timestamp:  time.Now(),
	}}
}

// WrapInternal wraps a downstream error as an InternalError.
func WrapInternal(cause error, format string, args ...interface{}) *InternalError {
	return &InternalError{AppError{
		Message:    fmt.Sprintf(format, args...),
		StatusCode: http.StatusInternalServerError,
		Timestamp:  time.Now(),
		Cause:      cause,
	}}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// StatusCode extracts the HTTP-equivalent status code from an error,
// defaulting to 500 for unclassified errors.
func StatusCode(err error) int {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.AppError.StatusCode
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.AppError.StatusCode
	}
	var ie *InternalError
	if errors.As(err, &ie) {
		return ie.AppError.StatusCode
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return http.StatusInternalServerError
}
