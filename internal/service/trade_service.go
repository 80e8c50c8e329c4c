package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

// TradeService lists a user's validated fills.
type TradeService struct {
	calc   *calculator
	logger *slog.Logger
}

// NewTradeService creates a TradeService with all required dependencies.
func NewTradeService(
	fills domain.FillSource,
	cfg ChallengeConfig,
	logger *slog.Logger,
) *TradeService {
	return &TradeService{
		calc:   newCalculator(fills, nil, cfg, logger),
		logger: logger,
	}
}

// TargetBuilder is the identifier attributed fills are labelled with.
func (s *TradeService) TargetBuilder() string {
	return s.calc.normalizer.Target()
}

// List returns the user's fills ordered by (TimeMs, TradeID). Under
// builder-only filtering only fills attributed to the target builder remain.
func (s *TradeService) List(ctx context.Context, q UserQuery) ([]domain.Fill, error) {
	if err := q.validate(); err != nil {
		return nil, fmt.Errorf("trade_service: %w", err)
	}
	fills, err := s.calc.load(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("trade_service: %w", err)
	}
	if !q.BuilderOnly {
		return fills, nil
	}

	out := make([]domain.Fill, 0, len(fills))
	for _, f := range fills {
		if f.IsTargetBuilder {
			out = append(out, f)
		}
	}
	s.logger.DebugContext(ctx, "trade_service: filtered builder trades",
		slog.String("user", q.User),
		slog.Int("total", len(fills)),
		slog.Int("attributed", len(out)),
	)
	return out, nil
}
