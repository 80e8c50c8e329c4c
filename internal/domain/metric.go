package domain

import (
	"fmt"
	"strings"
	"time"
)

// Metric names a leaderboard ranking dimension.
type Metric string

const (
	MetricPnL       Metric = "pnl"
	MetricVolume    Metric = "volume"
	MetricReturnPct Metric = "returnPct"
)

// ParseMetric accepts the metric names used on the wire. An empty string
// yields MetricPnL.
func ParseMetric(s string) (Metric, error) {
	switch strings.TrimSpace(s) {
	case "", "pnl":
		return MetricPnL, nil
	case "volume":
		return MetricVolume, nil
	case "returnPct":
		return MetricReturnPct, nil
	default:
		return "", &InvalidMetricRequestError{Reason: fmt.Sprintf("unknown metric %q", s)}
	}
}

// MetricRecord is one user's value for a leaderboard metric. Rank is zero
// until the record has been ranked.
type MetricRecord struct {
	User        string
	MetricValue float64
	TradeCount  int
	Tainted     bool
	Rank        int
}

// PnLSummary is the per-user aggregate behind the PnL endpoint.
type PnLSummary struct {
	User        string
	RealizedPnl float64
	FeesPaid    float64
	Volume      float64
	TradeCount  int
	ReturnPct   *float64
	Tainted     bool
	BuilderOnly bool
}

// LeaderboardRun is a persisted, ranked leaderboard computation.
type LeaderboardRun struct {
	ID          string
	Metric      Metric
	Coin        string
	BuilderOnly bool
	FromMs      *int64
	ToMs        *int64
	Records     []MetricRecord
	ComputedAt  time.Time
}

// Leader returns the rank-1 user of the run, or "" when it is empty.
func (r LeaderboardRun) Leader() string {
	if len(r.Records) == 0 {
		return ""
	}
	return r.Records[0].User
}
