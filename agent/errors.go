package agent

import (
	"errors"
	"fmt"
)

// ErrorCode classifies agent client errors.
type ErrorCode int

const (
	// ErrCodeDriver indicates the transport failed before a response arrived.
	ErrCodeDriver ErrorCode = iota
	// ErrCodeHTTP indicates the agent answered with an unexpected status.
	ErrCodeHTTP
	// ErrCodeNotFound indicates the session, check, or service is absent at
	// the agent.
	ErrCodeNotFound
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeDriver:
		return "driver"
	case ErrCodeHTTP:
		return "http"
	case ErrCodeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is a structured agent client error.
type Error struct {
	// Code classifies the error.
	Code ErrorCode
	// Status is the HTTP status code for ErrCodeHTTP errors, 0 otherwise.
	Status int
	// Headers are the response headers for ErrCodeHTTP errors.
	Headers map[string]string
	// Payload is the response body for ErrCodeHTTP errors.
	Payload []byte
	// Message describes the error.
	Message string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code == ErrCodeHTTP {
		return fmt.Sprintf("agent: %s (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("agent: %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewDriverError wraps a transport-level failure.
func NewDriverError(err error) *Error {
	return &Error{
		Code:    ErrCodeDriver,
		Message: err.Error(),
		Err:     err,
	}
}

// NewHTTPError creates an error carrying the agent's non-success reply.
func NewHTTPError(status int, headers map[string]string, payload []byte) *Error {
	return &Error{
		Code:    ErrCodeHTTP,
		Status:  status,
		Headers: headers,
		Payload: payload,
		Message: string(payload),
	}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(what string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: what,
	}
}

// IsDriver checks if an error is a transport-level failure.
func IsDriver(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeDriver
}

// IsHTTP checks if an error is an unexpected-status failure.
func IsHTTP(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeHTTP
}

// IsNotFound checks if an error is a not-found error.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeNotFound
}
