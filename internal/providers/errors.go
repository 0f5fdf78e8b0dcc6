package providers

import (
	"errors"
	"fmt"
)

// StatusError is returned for a non-200 response from the completion endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Code, e.Body)
}

// IsStatus reports whether err carries an HTTP status error with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	return IsStatus(err, 401) || IsStatus(err, 403)
}

// ExhaustedError is returned when every batch-level attempt failed softly.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// TransportError is returned when the inner transport retry gives up.
type TransportError struct {
	Tries int
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failed after %d tries: %v", e.Tries, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ContentError is returned when a ContentCheck rejected the completion text.
type ContentError struct {
	Err error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("unusable content: %v", e.Err)
}

func (e *ContentError) Unwrap() error { return e.Err }
