package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
	"github.com/alanyoungcy/hlchallenge/internal/leaderboard"
	"github.com/alanyoungcy/hlchallenge/internal/metrics"
)

const defaultWorkers = 8

// LeaderboardQuery selects what a leaderboard ranks.
type LeaderboardQuery struct {
	Coin            string
	FromMs          *int64
	ToMs            *int64
	Metric          domain.Metric
	BuilderOnly     bool
	MaxStartCapital *float64
}

// LeaderboardService ranks every challenge participant by one metric.
type LeaderboardService struct {
	calc         *calculator
	participants domain.ParticipantStore
	runs         domain.LeaderboardStore
	logger       *slog.Logger
}

// NewLeaderboardService creates a LeaderboardService. participants and runs
// may be nil; without a participant store the configured static user list is
// ranked, and without a run store Latest reports domain.ErrNotFound.
func NewLeaderboardService(
	fills domain.FillSource,
	equity domain.EquitySource,
	participants domain.ParticipantStore,
	runs domain.LeaderboardStore,
	cfg ChallengeConfig,
	logger *slog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		calc:         newCalculator(fills, equity, cfg, logger),
		participants: participants,
		runs:         runs,
		logger:       logger,
	}
}

// Users returns the participants to rank, deduplicated in listing order.
func (s *LeaderboardService) Users(ctx context.Context) ([]string, error) {
	var users []string
	if s.participants != nil {
		ps, err := s.participants.ListActive(ctx)
		if err != nil {
			return nil, fmt.Errorf("leaderboard_service: list participants: %w", err)
		}
		for _, p := range ps {
			users = append(users, p.User)
		}
	} else {
		users = s.calc.cfg.Users
	}

	seen := make(map[string]bool, len(users))
	out := make([]string, 0, len(users))
	for _, u := range users {
		key := strings.ToLower(strings.TrimSpace(u))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(u))
	}
	return out, nil
}

// Compute runs each participant's pipeline concurrently and ranks the users
// that have qualifying fills. Any user failing aborts the run so a partial
// board is never published.
func (s *LeaderboardService) Compute(ctx context.Context, q LeaderboardQuery) (domain.LeaderboardRun, error) {
	if q.Metric == "" {
		q.Metric = domain.MetricPnL
	}
	if q.FromMs != nil && q.ToMs != nil && *q.FromMs > *q.ToMs {
		return domain.LeaderboardRun{}, fmt.Errorf("leaderboard_service: %w: fromMs is after toMs", domain.ErrInvalidQuery)
	}
	users, err := s.Users(ctx)
	if err != nil {
		return domain.LeaderboardRun{}, err
	}

	start := time.Now()
	records := make([]*domain.MetricRecord, len(users))

	workers := s.calc.cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, user := range users {
		g.Go(func() error {
			rec, ok, err := s.userRecord(gctx, user, q)
			if err != nil {
				return err
			}
			if ok {
				records[i] = &rec
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.LeaderboardRun{}, fmt.Errorf("leaderboard_service: compute: %w", err)
	}

	ranked := make([]domain.MetricRecord, 0, len(users))
	for _, r := range records {
		if r != nil {
			ranked = append(ranked, *r)
		}
	}

	run := domain.LeaderboardRun{
		ID:          uuid.NewString(),
		Metric:      q.Metric,
		Coin:        q.Coin,
		BuilderOnly: q.BuilderOnly,
		FromMs:      q.FromMs,
		ToMs:        q.ToMs,
		Records:     leaderboard.Rank(ranked),
		ComputedAt:  time.Now().UTC(),
	}

	s.logger.InfoContext(ctx, "leaderboard_service: computed leaderboard",
		slog.String("run_id", run.ID),
		slog.String("metric", string(q.Metric)),
		slog.Bool("builder_only", q.BuilderOnly),
		slog.Int("participants", len(users)),
		slog.Int("ranked", len(run.Records)),
		slog.Duration("took", time.Since(start)),
	)
	return run, nil
}

// Latest returns the most recent persisted run for metric.
func (s *LeaderboardService) Latest(ctx context.Context, metric domain.Metric, builderOnly bool) (domain.LeaderboardRun, error) {
	if s.runs == nil {
		return domain.LeaderboardRun{}, fmt.Errorf("leaderboard_service: latest run: %w", domain.ErrNotFound)
	}
	run, err := s.runs.LatestRun(ctx, metric, builderOnly)
	if err != nil {
		return domain.LeaderboardRun{}, fmt.Errorf("leaderboard_service: latest run: %w", err)
	}
	return run, nil
}

func (s *LeaderboardService) userRecord(ctx context.Context, user string, q LeaderboardQuery) (domain.MetricRecord, bool, error) {
	uq := UserQuery{User: user, Coin: q.Coin, FromMs: q.FromMs, ToMs: q.ToMs, BuilderOnly: q.BuilderOnly}
	fills, err := s.calc.load(ctx, uq)
	if err != nil {
		return domain.MetricRecord{}, false, err
	}
	sum := s.calc.summarize(fills, q.BuilderOnly)
	if sum.Empty() {
		return domain.MetricRecord{}, false, nil
	}

	var base metrics.CapitalBase
	if q.Metric == domain.MetricReturnPct {
		base, err = s.calc.capitalBase(ctx, uq, fills, q.MaxStartCapital)
		if err != nil {
			return domain.MetricRecord{}, false, fmt.Errorf("capital base for %s: %w", user, err)
		}
	}
	return metrics.Record(user, sum, q.Metric, base)
}
