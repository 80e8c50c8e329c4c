package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
	"github.com/alanyoungcy/hlchallenge/internal/fill"
	"github.com/alanyoungcy/hlchallenge/internal/metrics"
	"github.com/alanyoungcy/hlchallenge/internal/position"
)

// ChallengeConfig carries the immutable challenge settings shared by every
// service.
type ChallengeConfig struct {
	TargetBuilder string
	// MaxStartCapital is the default cap applied to returnPct when a request
	// does not supply one.
	MaxStartCapital *float64
	// Workers bounds the per-user fan-out of a leaderboard computation.
	Workers int
	// Users is the static participant list used when no participant store is
	// configured.
	Users []string
}

// UserQuery selects one user's fills.
type UserQuery struct {
	User        string
	Coin        string
	FromMs      *int64
	ToMs        *int64
	BuilderOnly bool
}

func (q UserQuery) validate() error {
	if strings.TrimSpace(q.User) == "" {
		return fmt.Errorf("%w: user is required", domain.ErrInvalidQuery)
	}
	if q.FromMs != nil && q.ToMs != nil && *q.FromMs > *q.ToMs {
		return fmt.Errorf("%w: fromMs is after toMs", domain.ErrInvalidQuery)
	}
	return nil
}

// calculator is the fetch, normalize and reconstruct pipeline shared by the
// PnL and leaderboard services.
type calculator struct {
	fills      domain.FillSource
	equity     domain.EquitySource
	normalizer *fill.Normalizer
	cfg        ChallengeConfig
	logger     *slog.Logger
}

func newCalculator(fills domain.FillSource, equity domain.EquitySource, cfg ChallengeConfig, logger *slog.Logger) *calculator {
	return &calculator{
		fills:      fills,
		equity:     equity,
		normalizer: fill.NewNormalizer(cfg.TargetBuilder),
		cfg:        cfg,
		logger:     logger,
	}
}

// load fetches and validates one user's fills, applying the coin filter and
// the time window. The source is trusted to honour the window but it is
// re-applied in case a cache or paginator returned a superset.
func (c *calculator) load(ctx context.Context, q UserQuery) ([]domain.Fill, error) {
	raws, err := c.fills.FetchFills(ctx, domain.FillQuery{User: q.User, FromMs: q.FromMs, ToMs: q.ToMs})
	if err != nil {
		return nil, fmt.Errorf("fetch fills for %s: %w", q.User, err)
	}
	fills, err := c.normalizer.NormalizeAll(raws)
	if err != nil {
		return nil, fmt.Errorf("normalize fills for %s: %w", q.User, err)
	}
	fills = fill.FilterCoin(fills, q.Coin)
	fills = fill.FilterWindow(fills, q.FromMs, q.ToMs)
	return fill.SortFills(fills), nil
}

// summarize classifies every fill against its true lifecycle and aggregates
// the included ones. Taint is only reported under builder-only semantics.
func (c *calculator) summarize(fills []domain.Fill, builderOnly bool) metrics.Summary {
	res := position.History(fills, position.Options{ClassifyTaint: true})
	s := metrics.Aggregate(res.Fills, metrics.ModeFor(builderOnly))
	if !builderOnly {
		s.Tainted = false
	}
	return s
}

// capitalBase resolves the equity used for returnPct. Equity is read at
// fromMs, or at the first fill when the window is open. An equity failure is
// tolerated when a cap can stand in for it.
func (c *calculator) capitalBase(ctx context.Context, q UserQuery, fills []domain.Fill, maxStart *float64) (metrics.CapitalBase, error) {
	base := metrics.CapitalBase{MaxStartCapital: maxStart}
	if base.MaxStartCapital == nil {
		base.MaxStartCapital = c.cfg.MaxStartCapital
	}

	var at int64
	switch {
	case q.FromMs != nil:
		at = *q.FromMs
	case len(fills) > 0:
		at = fills[0].TimeMs
	default:
		return base, nil
	}

	if c.equity == nil {
		if base.MaxStartCapital == nil {
			return base, &domain.InvalidMetricRequestError{Reason: "no equity source and no capital cap"}
		}
		return base, nil
	}

	equity, err := c.equity.FetchEquityAt(ctx, q.User, at)
	if err != nil {
		if base.MaxStartCapital == nil {
			return base, &domain.InvalidMetricRequestError{Reason: "equity unavailable and no capital cap: " + err.Error()}
		}
		c.logger.WarnContext(ctx, "calculator: equity lookup failed, using capital cap",
			slog.String("user", q.User),
			slog.Int64("at_ms", at),
			slog.String("error", err.Error()),
		)
		return base, nil
	}
	base.Equity = &equity
	return base, nil
}
