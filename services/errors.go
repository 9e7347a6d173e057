package services

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a retrieval failure that crosses the service boundary.
type ErrorCode string

const (
	ErrNoResults   ErrorCode = "NO_RESULTS"   // 404
	ErrFetchFailed ErrorCode = "FETCH_FAILED" // 502
)

// RetrievalError is returned by searches. Per-page failures never produce one;
// they degrade to the listing snippet instead.
type RetrievalError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying transport or decode error.
func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// NewNoResults reports a search that produced zero candidate pages.
func NewNoResults(query string) *RetrievalError {
	return &RetrievalError{
		Code:    ErrNoResults,
		Message: fmt.Sprintf("no search results for %q", query),
	}
}

// NewFetchFailed reports that the results page itself could not be retrieved
// or decoded.
func NewFetchFailed(reason string, err error) *RetrievalError {
	return &RetrievalError{
		Code:    ErrFetchFailed,
		Message: reason,
		Err:     err,
	}
}

// IsCode checks if err is, or wraps, a RetrievalError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var rErr *RetrievalError
	if errors.As(err, &rErr) {
		return rErr.Code == code
	}
	return false
}
