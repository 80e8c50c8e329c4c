// Package metrics turns classified fills into the per-user figures the PnL
// and leaderboard endpoints report.
package metrics

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

// Mode selects which fills count toward a summary.
type Mode int

const (
	// AllTrades includes every fill regardless of attribution or taint.
	AllTrades Mode = iota
	// BuilderOnly includes fills attributed to the target builder whose
	// lifecycle was not tainted at that fill.
	BuilderOnly
)

// ModeFor maps the builderOnly request flag onto a Mode.
func ModeFor(builderOnly bool) Mode {
	if builderOnly {
		return BuilderOnly
	}
	return AllTrades
}

// Includes reports whether cf counts toward a summary in this mode.
func (m Mode) Includes(cf domain.ClassifiedFill) bool {
	if m == BuilderOnly {
		return cf.IsTargetBuilder && !cf.Tainted
	}
	return true
}

// Summary holds the aggregated figures for one user.
type Summary struct {
	RealizedPnl float64
	FeesPaid    float64
	Volume      float64
	TradeCount  int
	// Tainted is true if any classified fill was tainted, whether or not it
	// was included.
	Tainted bool
}

// Empty reports whether no fill qualified.
func (s Summary) Empty() bool {
	return s.TradeCount == 0
}

// Aggregate sums closed PnL, fees and notional over the fills the mode
// includes.
func Aggregate(fills []domain.ClassifiedFill, mode Mode) Summary {
	var (
		pnl    = decimal.Zero
		fees   = decimal.Zero
		volume = decimal.Zero
		out    Summary
	)
	for _, cf := range fills {
		if cf.Tainted {
			out.Tainted = true
		}
		if !mode.Includes(cf) {
			continue
		}
		pnl = pnl.Add(decimal.NewFromFloat(cf.ClosedPnl))
		fees = fees.Add(decimal.NewFromFloat(cf.Fee))
		volume = volume.Add(decimal.NewFromFloat(cf.Price).Mul(decimal.NewFromFloat(cf.Size)))
		out.TradeCount++
	}
	out.RealizedPnl = pnl.InexactFloat64()
	out.FeesPaid = fees.InexactFloat64()
	out.Volume = volume.InexactFloat64()
	return out
}

// EffectiveCapital floors equity at 1.0 and caps it at maxStartCapital when
// one is supplied.
func EffectiveCapital(equity float64, maxStartCapital *float64) float64 {
	capital := math.Max(equity, 1.0)
	if maxStartCapital != nil {
		capital = math.Min(capital, *maxStartCapital)
	}
	return capital
}

// ReturnPct is realizedPnl as a percentage of the effective capital.
func ReturnPct(realizedPnl, equity float64, maxStartCapital *float64) float64 {
	return realizedPnl * 100 / EffectiveCapital(equity, maxStartCapital)
}

// CapitalBase is the input to a return computation. Equity is nil when the
// equity source could not supply a value.
type CapitalBase struct {
	Equity          *float64
	MaxStartCapital *float64
}

// ReturnPctFor computes the return against base. Without equity the cap alone
// serves as capital; with neither the request cannot be answered. A cap that
// is not a positive finite number is rejected.
func ReturnPctFor(realizedPnl float64, base CapitalBase) (float64, error) {
	if c := base.MaxStartCapital; c != nil && !(*c > 0 && !math.IsInf(*c, 1)) {
		return 0, &domain.InvalidMetricRequestError{
			Reason: fmt.Sprintf("maxStartCapital must be a positive finite number, got %v", *c),
		}
	}
	switch {
	case base.Equity != nil:
		return ReturnPct(realizedPnl, *base.Equity, base.MaxStartCapital), nil
	case base.MaxStartCapital != nil:
		return realizedPnl * 100 / math.Max(*base.MaxStartCapital, 1.0), nil
	default:
		return 0, &domain.InvalidMetricRequestError{Reason: "returnPct needs equity or a capital cap"}
	}
}

// MetricValue picks the figure a leaderboard ranks by. ok is false when the
// summary has no included fills; such users are not ranked.
func MetricValue(s Summary, metric domain.Metric, base CapitalBase) (value float64, ok bool, err error) {
	if s.Empty() {
		return 0, false, nil
	}
	switch metric {
	case domain.MetricPnL:
		return s.RealizedPnl, true, nil
	case domain.MetricVolume:
		return s.Volume, true, nil
	case domain.MetricReturnPct:
		v, err := ReturnPctFor(s.RealizedPnl, base)
		if err != nil {
			return 0, false, err
		}
		return v, true, nil
	default:
		return 0, false, &domain.InvalidMetricRequestError{Reason: fmt.Sprintf("unknown metric %q", metric)}
	}
}

// Record builds the leaderboard record for user, or returns ok=false when the
// user has nothing to rank.
func Record(user string, s Summary, metric domain.Metric, base CapitalBase) (domain.MetricRecord, bool, error) {
	v, ok, err := MetricValue(s, metric, base)
	if err != nil || !ok {
		return domain.MetricRecord{}, false, err
	}
	return domain.MetricRecord{
		User:        user,
		MetricValue: v,
		TradeCount:  s.TradeCount,
		Tainted:     s.Tainted,
	}, true, nil
}
