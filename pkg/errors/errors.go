// Package errors defines the error taxonomy of a scrape run.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType classifies how a failure affects a run
type ErrorType string

const (
	// ErrorTypeCredential covers missing or rejected session cookies. Terminal.
	ErrorTypeCredential ErrorType = "credential"
	// ErrorTypeExtraction covers unexpected response shapes. Recovered by skipping.
	ErrorTypeExtraction ErrorType = "extraction"
	// ErrorTypeNavigation covers missing profiles and pages that never load. Terminal.
	ErrorTypeNavigation ErrorType = "navigation"
	// ErrorTypeDownload covers per-file fetch failures. Counted, not raised.
	ErrorTypeDownload ErrorType = "download"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error carries a type alongside the failing operation
type Error struct {
	Type    ErrorType
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(t ErrorType, op, msg string, err error) *Error {
	return &Error{Type: t, Op: op, Message: msg, Err: err}
}

func Credential(op, msg string, err error) *Error { return newError(ErrorTypeCredential, op, msg, err) }
func Extraction(op, msg string, err error) *Error { return newError(ErrorTypeExtraction, op, msg, err) }
func Navigation(op, msg string, err error) *Error { return newError(ErrorTypeNavigation, op, msg, err) }
func Download(op, msg string, err error) *Error   { return newError(ErrorTypeDownload, op, msg, err) }
func Unknown(op, msg string, err error) *Error    { return newError(ErrorTypeUnknown, op, msg, err) }

// TypeOf returns the type of the first *Error in err's chain, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given type
func IsType(err error, t ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}

// IsTerminal reports whether an error of this type ends a run
func IsTerminal(t ErrorType) bool {
	switch t {
	case ErrorTypeExtraction, ErrorTypeDownload:
		return false
	default:
		return true
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // network error
		return true
	case 408, 429:
		return true
	case 401, 403, 404, 410:
		return false
	default:
		return statusCode >= 500
	}
}

// HTTPStatusError reports a non-2xx media response
type HTTPStatusError struct {
	StatusCode int
	URL        string
	// RetryAfter is the server's requested pause, zero when not sent
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// Retryable reports whether the status is worth another attempt
func (e *HTTPStatusError) Retryable() bool {
	return IsRetryableStatusCode(e.StatusCode)
}
