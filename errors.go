package skyodyssey

import (
	"context"
	"errors"
	"fmt"
)

// Error type tags used by SearchError.
const (
	ErrorTypeTimeout      = "Timeout"
	ErrorTypeTransient    = "TransientProvider"
	ErrorTypeInvalidQuery = "InvalidQuery"
	ErrorTypeInvalidFare  = "InvalidFare"
	ErrorTypeCache        = "CacheBackend"
	ErrorTypeValidation   = "Validation"
)

// Sentinel errors for common terminal conditions.
var (
	// ErrNoFare is returned by a provider when the lookup succeeded but no
	// fare exists for the query. It is not a failure.
	ErrNoFare = errors.New("skyodyssey: no fare found")

	// ErrLegUnavailable marks a leg whose transient failures exhausted the
	// retry budget. The search continues with the leg simply absent.
	ErrLegUnavailable = errors.New("skyodyssey: leg unavailable")

	// ErrInvalidFare marks a provider or cache fare with a non-positive
	// price. Such fares are discarded and purged, never used.
	ErrInvalidFare = errors.New("skyodyssey: invalid fare price")
)

// SearchError is a typed error from the fetch chain.
type SearchError struct {
	Type       string
	Message    string
	Query      LegQuery
	Attempt    int
	MaxRetries int
	Cause      error
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	route := ""
	if e.Query.Origin != "" {
		route = fmt.Sprintf(" %s->%s %s", e.Query.Origin, e.Query.Destination, e.Query.Date)
	}
	msg := fmt.Sprintf("%s:%s %s", e.Type, route, e.Message)
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *SearchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *SearchError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*SearchError); ok {
		return e.Type == t.Type
	}
	return false
}

// NewTimeoutError wraps a provider timeout for the given query.
func NewTimeoutError(q LegQuery, cause error) *SearchError {
	return &SearchError{Type: ErrorTypeTimeout, Message: "provider timed out", Query: q, Cause: cause}
}

// NewTransientError wraps a retryable provider failure.
func NewTransientError(q LegQuery, cause error) *SearchError {
	return &SearchError{Type: ErrorTypeTransient, Message: "transient provider error", Query: q, Cause: cause}
}

// NewInvalidQueryError wraps a non-retryable provider rejection.
func NewInvalidQueryError(q LegQuery, cause error) *SearchError {
	return &SearchError{Type: ErrorTypeInvalidQuery, Message: "provider rejected query", Query: q, Cause: cause}
}

// IsTransient reports whether err represents a failure that might succeed on
// retry: provider timeouts, transient provider errors and context deadlines
// bubbled up from the transport. Invalid queries and cancellations are not
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *SearchError
	if errors.As(err, &se) {
		switch se.Type {
		case ErrorTypeTimeout, ErrorTypeTransient:
			return true
		}
	}
	return false
}

// isTimeout reports a provider timeout specifically; the permit pool shrinks
// harder on these than on generic errors.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *SearchError
	return errors.As(err, &se) && se.Type == ErrorTypeTimeout
}
