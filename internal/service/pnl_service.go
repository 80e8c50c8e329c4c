package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
	"github.com/alanyoungcy/hlchallenge/internal/metrics"
)

// PnLQuery is a UserQuery plus an optional per-request capital cap.
type PnLQuery struct {
	UserQuery
	MaxStartCapital *float64
}

// PnLService computes a user's realized performance over a window.
type PnLService struct {
	calc   *calculator
	logger *slog.Logger
}

// NewPnLService creates a PnLService with all required dependencies. equity
// may be nil, in which case returnPct relies on the capital cap alone.
func NewPnLService(
	fills domain.FillSource,
	equity domain.EquitySource,
	cfg ChallengeConfig,
	logger *slog.Logger,
) *PnLService {
	return &PnLService{
		calc:   newCalculator(fills, equity, cfg, logger),
		logger: logger,
	}
}

// Summary aggregates realized PnL, fees, volume and trade count. ReturnPct is
// nil when there are no qualifying fills. A missing capital base surfaces as
// an InvalidMetricRequestError rather than a zero return.
func (s *PnLService) Summary(ctx context.Context, q PnLQuery) (domain.PnLSummary, error) {
	if err := q.validate(); err != nil {
		return domain.PnLSummary{}, fmt.Errorf("pnl_service: %w", err)
	}
	fills, err := s.calc.load(ctx, q.UserQuery)
	if err != nil {
		return domain.PnLSummary{}, fmt.Errorf("pnl_service: %w", err)
	}

	sum := s.calc.summarize(fills, q.BuilderOnly)
	out := domain.PnLSummary{
		User:        q.User,
		RealizedPnl: sum.RealizedPnl,
		FeesPaid:    sum.FeesPaid,
		Volume:      sum.Volume,
		TradeCount:  sum.TradeCount,
		Tainted:     sum.Tainted,
		BuilderOnly: q.BuilderOnly,
	}
	if sum.Empty() {
		return out, nil
	}

	base, err := s.calc.capitalBase(ctx, q.UserQuery, fills, q.MaxStartCapital)
	if err != nil {
		return domain.PnLSummary{}, fmt.Errorf("pnl_service: capital base: %w", err)
	}
	ret, err := metrics.ReturnPctFor(sum.RealizedPnl, base)
	if err != nil {
		return domain.PnLSummary{}, fmt.Errorf("pnl_service: return pct: %w", err)
	}
	out.ReturnPct = &ret

	s.logger.DebugContext(ctx, "pnl_service: computed summary",
		slog.String("user", q.User),
		slog.Int("trades", out.TradeCount),
		slog.Float64("realized_pnl", out.RealizedPnl),
		slog.Float64("return_pct", ret),
	)
	return out, nil
}
