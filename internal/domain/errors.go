package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrLockHeld     = errors.New("lock already held")
	ErrUpstream     = errors.New("upstream unavailable")
	ErrInvalidQuery = errors.New("invalid query")

	ErrMalformedFill        = errors.New("malformed fill")
	ErrUnknownSide          = errors.New("unknown side")
	ErrInvalidMetricRequest = errors.New("invalid metric request")
)

// MalformedFillError reports a fill record that is missing a required field
// or carries an unparsable or negative magnitude.
type MalformedFillError struct {
	Field  string
	Value  string
	Reason string
}

func (e *MalformedFillError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("malformed fill: %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("malformed fill: %s: %s", e.Field, e.Reason)
}

func (e *MalformedFillError) Is(target error) bool { return target == ErrMalformedFill }

// UnknownSideError reports a side marker that is neither buy- nor
// sell-equivalent.
type UnknownSideError struct {
	Side string
}

func (e *UnknownSideError) Error() string {
	return fmt.Sprintf("unknown side %q", e.Side)
}

func (e *UnknownSideError) Is(target error) bool { return target == ErrUnknownSide }

// InvalidMetricRequestError reports a metric query that cannot be answered,
// e.g. a return percentage without any usable capital base.
type InvalidMetricRequestError struct {
	Reason string
}

func (e *InvalidMetricRequestError) Error() string {
	return "invalid metric request: " + e.Reason
}

func (e *InvalidMetricRequestError) Is(target error) bool { return target == ErrInvalidMetricRequest }

// BatchError locates the record that caused a batch to be rejected.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("fill %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
