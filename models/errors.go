package models

import (
	"errors"
	"fmt"
)

// Error kinds used in API responses and internal error handling.
const (
	ErrKindInvalidURL = "INVALID_URL"
	ErrKindNetwork    = "NETWORK"
	ErrKindHTTP       = "HTTP"
	ErrKindTimeout    = "TIMEOUT"
	ErrKindNoMatch    = "NO_MATCH"
	ErrKindPartial    = "PARTIAL"

	// API-edge kinds, never produced by the extraction pipeline.
	ErrKindRateLimited  = "RATE_LIMITED"
	ErrKindUnauthorized = "UNAUTHORIZED"
	ErrKindInternal     = "INTERNAL"
)

// ScrapeError is the internal error type carrying an error kind.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Kind      string
	Message   string
	Retryable bool

	// StatusCode is the upstream HTTP status for ErrKindHTTP, 0 otherwise.
	StatusCode int

	Err error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError. Retryable is derived from the kind.
func NewScrapeError(kind, message string, err error) *ScrapeError {
	return &ScrapeError{
		Kind:      kind,
		Message:   message,
		Retryable: kind == ErrKindNetwork || kind == ErrKindTimeout || kind == ErrKindPartial,
		Err:       err,
	}
}

// NewHTTPError creates an ErrKindHTTP error for an upstream status code.
// 429 and 5xx are reported as retryable by the caller.
func NewHTTPError(statusCode int, message string) *ScrapeError {
	return &ScrapeError{
		Kind:       ErrKindHTTP,
		Message:    message,
		Retryable:  statusCode == 429 || statusCode >= 500,
		StatusCode: statusCode,
	}
}

// AsScrapeError returns err as a *ScrapeError, wrapping foreign errors into
// ErrKindInternal so callers always get a structured value.
func AsScrapeError(err error) *ScrapeError {
	if err == nil {
		return nil
	}
	var se *ScrapeError
	if errors.As(err, &se) {
		return se
	}
	return NewScrapeError(ErrKindInternal, "internal error", err)
}

// ErrorDetail is the structured error exposed to API callers.
type ErrorDetail struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
// The wrapped cause is deliberately left out.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Kind: e.Kind, Message: e.Message, Retryable: e.Retryable}
}
