// Package errors defines the sentinel errors shared across the label search
// engine, plus an AppError wrapper carrying an HTTP status for the search
// service. Ranking correctness is the engine's entire value proposition, so
// internal inconsistencies (corrupt index, index/collection mismatch) are
// hard errors rather than degraded results.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotIndexed is returned when a search is attempted without a built
	// index.
	ErrNotIndexed = errors.New("collection is not indexed")
	// ErrUnknownScoring is returned for an unrecognized scoring mode.
	ErrUnknownScoring = errors.New("unknown scoring mode")
	// ErrUnknownWeighting is returned for an unrecognized index weighting
	// mode.
	ErrUnknownWeighting = errors.New("unknown weighting mode")
	// ErrBadMask is returned when a mask pattern fails to compile.
	ErrBadMask = errors.New("invalid mask pattern")
	// ErrCorruptIndex is returned when a persisted index cannot be decoded
	// or is inconsistent with the collection it is loaded against.
	ErrCorruptIndex = errors.New("corrupt index")
	// ErrRecordNotFound is returned when a record identifier is not present
	// in the collection.
	ErrRecordNotFound = errors.New("record not found")
	// ErrInvalidInput marks malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTimeout marks a query that exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")
)

// AppError wraps a sentinel with a human-readable message and an HTTP status
// code for the search service surface.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New builds an AppError around a sentinel.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Newf is New with a format string.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error to the HTTP status the search service should
// return for it.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrUnknownScoring),
		errors.Is(err, ErrUnknownWeighting),
		errors.Is(err, ErrBadMask):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrNotIndexed), errors.Is(err, ErrCorruptIndex):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
