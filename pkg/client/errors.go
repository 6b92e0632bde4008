package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the fetcher.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrRequestBlocked is returned when the failure budget refuses a request.
	ErrRequestBlocked = errors.New("request blocked: portal failure budget exhausted")
)

// PortalError describes a failed exchange with the results portal.
type PortalError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
// Transport failures report the underlying error message unchanged.
func (e *PortalError) Error() string {
	if e.StatusCode == 0 && e.Err != nil {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("portal %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("portal %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PortalError) Unwrap() error {
	return e.Err
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassClient, ErrorClassNetwork:
		return true
	case ErrorClassBlocked:
		return false
	default:
		return false
	}
}

// classifyError maps an attempt error to its ErrorClass.
func classifyError(err error) ErrorClass {
	var pe *PortalError
	switch {
	case errors.As(err, &pe):
		return pe.ErrorClass
	case errors.Is(err, ErrRequestBlocked):
		return ErrorClassBlocked
	default:
		return ErrorClassNetwork
	}
}
