package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
	"github.com/alanyoungcy/hlchallenge/internal/position"
)

// PositionService reconstructs a user's position history on demand. Nothing
// is persisted; every call recomputes from the full fill history.
type PositionService struct {
	calc   *calculator
	logger *slog.Logger
}

// NewPositionService creates a PositionService with all required dependencies.
func NewPositionService(
	fills domain.FillSource,
	cfg ChallengeConfig,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		calc:   newCalculator(fills, nil, cfg, logger),
		logger: logger,
	}
}

// History returns the time-ordered snapshots for the user's fills. Under
// builder-only filtering non-target fills do not move the position and each
// snapshot carries the taint of its lifecycle.
func (s *PositionService) History(ctx context.Context, q UserQuery) ([]domain.Snapshot, error) {
	if err := q.validate(); err != nil {
		return nil, fmt.Errorf("position_service: %w", err)
	}
	fills, err := s.calc.load(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("position_service: %w", err)
	}
	if len(fills) == 0 {
		return []domain.Snapshot{}, nil
	}

	res := position.History(fills, position.Options{BuilderOnly: q.BuilderOnly})

	s.logger.DebugContext(ctx, "position_service: reconstructed history",
		slog.String("user", q.User),
		slog.String("coin", q.Coin),
		slog.Int("fills", len(fills)),
		slog.Int("snapshots", len(res.Snapshots)),
		slog.Bool("builder_only", q.BuilderOnly),
	)
	if res.Snapshots == nil {
		return []domain.Snapshot{}, nil
	}
	return res.Snapshots, nil
}
