package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

// LeaderboardStore implements domain.LeaderboardStore using PostgreSQL. A run
// is one leaderboard_runs row plus one leaderboard_entries row per rank.
type LeaderboardStore struct {
	pool *pgxpool.Pool
}

// NewLeaderboardStore creates a new LeaderboardStore backed by the given connection pool.
func NewLeaderboardStore(pool *pgxpool.Pool) *LeaderboardStore {
	return &LeaderboardStore{pool: pool}
}

// SaveRun writes run and its entries atomically.
func (s *LeaderboardStore) SaveRun(ctx context.Context, run domain.LeaderboardRun) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("postgres: save run %q: %w", run.ID, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin save run %s: %w", run.ID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertRun = `
		INSERT INTO leaderboard_runs (id, metric, coin, builder_only, from_ms, to_ms, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, insertRun,
		id, string(run.Metric), run.Coin, run.BuilderOnly,
		run.FromMs, run.ToMs, run.ComputedAt,
	); err != nil {
		return fmt.Errorf("postgres: insert run %s: %w", run.ID, err)
	}

	if len(run.Records) > 0 {
		rows := make([][]any, 0, len(run.Records))
		for _, r := range run.Records {
			rows = append(rows, []any{id, r.Rank, r.User, r.MetricValue, r.TradeCount, r.Tainted})
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"leaderboard_entries"},
			[]string{"run_id", "rank", "wallet", "metric_value", "trade_count", "tainted"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("postgres: copy entries for run %s: %w", run.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit run %s: %w", run.ID, err)
	}
	return nil
}

// LatestRun returns the most recent run for metric and builderOnly, with its
// entries in rank order. It returns domain.ErrNotFound when none exists.
func (s *LeaderboardStore) LatestRun(ctx context.Context, metric domain.Metric, builderOnly bool) (domain.LeaderboardRun, error) {
	const runQuery = `
		SELECT id, metric, coin, builder_only, from_ms, to_ms, computed_at
		FROM leaderboard_runs
		WHERE metric = $1 AND builder_only = $2
		ORDER BY computed_at DESC
		LIMIT 1`

	var (
		run domain.LeaderboardRun
		id  uuid.UUID
		m   string
	)
	err := s.pool.QueryRow(ctx, runQuery, string(metric), builderOnly).Scan(
		&id, &m, &run.Coin, &run.BuilderOnly, &run.FromMs, &run.ToMs, &run.ComputedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LeaderboardRun{}, fmt.Errorf("postgres: latest %s run: %w", metric, domain.ErrNotFound)
	}
	if err != nil {
		return domain.LeaderboardRun{}, fmt.Errorf("postgres: latest %s run: %w", metric, err)
	}
	run.ID = id.String()
	run.Metric = domain.Metric(m)

	const entryQuery = `
		SELECT wallet, metric_value, trade_count, tainted, rank
		FROM leaderboard_entries
		WHERE run_id = $1
		ORDER BY rank ASC`
	rows, err := s.pool.Query(ctx, entryQuery, id)
	if err != nil {
		return domain.LeaderboardRun{}, fmt.Errorf("postgres: entries for run %s: %w", run.ID, err)
	}
	defer rows.Close()

	run.Records = []domain.MetricRecord{}
	for rows.Next() {
		var r domain.MetricRecord
		if err := rows.Scan(&r.User, &r.MetricValue, &r.TradeCount, &r.Tainted, &r.Rank); err != nil {
			return domain.LeaderboardRun{}, fmt.Errorf("postgres: scan entry: %w", err)
		}
		run.Records = append(run.Records, r)
	}
	if err := rows.Err(); err != nil {
		return domain.LeaderboardRun{}, fmt.Errorf("postgres: entries for run %s rows: %w", run.ID, err)
	}
	return run, nil
}

var _ domain.LeaderboardStore = (*LeaderboardStore)(nil)
