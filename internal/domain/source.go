package domain

import "context"

// FillSource retrieves a user's raw fills. Implementations may return the
// fills in any order and may return an empty slice.
type FillSource interface {
	FetchFills(ctx context.Context, q FillQuery) ([]RawFill, error)
}

// EquitySource reports a user's account equity at a point in time. The value
// is floored at zero by the implementation.
type EquitySource interface {
	FetchEquityAt(ctx context.Context, user string, timestampMs int64) (float64, error)
}
