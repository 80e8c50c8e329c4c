package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

// LeaderboardChannel is the signal bus channel leaderboard updates go out on.
const LeaderboardChannel = "leaderboard"

// EventLeaderChanged is the notification event sent when rank 1 changes.
const EventLeaderChanged = "leader_changed"

// Alerter delivers operator notifications.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// RefreshConfig controls the periodic leaderboard recomputation.
type RefreshConfig struct {
	Interval time.Duration
	LockKey  string
	LockTTL  time.Duration
	Queries  []LeaderboardQuery
}

// LeaderboardRefresher recomputes the configured leaderboards on a schedule
// and fans the result out: persisted, published, archived, and alerted on a
// leader change. Every collaborator except the leaderboard service is
// optional.
type LeaderboardRefresher struct {
	board    *LeaderboardService
	runs     domain.LeaderboardStore
	locks    domain.LockManager
	bus      domain.SignalBus
	archiver domain.LeaderboardArchiver
	alerts   Alerter
	audit    domain.AuditStore
	cfg      RefreshConfig
	logger   *slog.Logger

	mu      sync.Mutex
	leaders map[string]string
}

// RefresherDeps groups the optional sinks of a LeaderboardRefresher.
type RefresherDeps struct {
	Runs     domain.LeaderboardStore
	Locks    domain.LockManager
	Bus      domain.SignalBus
	Archiver domain.LeaderboardArchiver
	Alerts   Alerter
	Audit    domain.AuditStore
}

// NewLeaderboardRefresher creates a LeaderboardRefresher.
func NewLeaderboardRefresher(board *LeaderboardService, deps RefresherDeps, cfg RefreshConfig, logger *slog.Logger) *LeaderboardRefresher {
	if cfg.LockKey == "" {
		cfg.LockKey = "leaderboard:refresh"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if len(cfg.Queries) == 0 {
		cfg.Queries = []LeaderboardQuery{{Metric: domain.MetricPnL}}
	}
	return &LeaderboardRefresher{
		board:    board,
		runs:     deps.Runs,
		locks:    deps.Locks,
		bus:      deps.Bus,
		archiver: deps.Archiver,
		alerts:   deps.Alerts,
		audit:    deps.Audit,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "leaderboard_refresher")),
		leaders:  make(map[string]string),
	}
}

// Run refreshes immediately and then on every interval until ctx is done.
// Failed refreshes are logged and retried on the next tick.
func (r *LeaderboardRefresher) Run(ctx context.Context) error {
	interval := r.cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	r.logger.InfoContext(ctx, "refresher started", slog.Duration("interval", interval))

	if err := r.RefreshOnce(ctx); err != nil && ctx.Err() == nil {
		r.logger.ErrorContext(ctx, "refresh failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "refresher stopped")
			return nil
		case <-ticker.C:
			if err := r.RefreshOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "refresh failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RefreshOnce recomputes every configured leaderboard under the refresh lock.
// When another replica holds the lock the call is a no-op.
func (r *LeaderboardRefresher) RefreshOnce(ctx context.Context) error {
	if r.locks != nil {
		unlock, err := r.locks.Acquire(ctx, r.cfg.LockKey, r.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				r.logger.DebugContext(ctx, "refresh skipped, lock held elsewhere")
				return nil
			}
			return fmt.Errorf("refresher: acquire lock: %w", err)
		}
		defer unlock()
	}

	var errs []error
	for _, q := range r.cfg.Queries {
		if _, err := r.refresh(ctx, q); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *LeaderboardRefresher) refresh(ctx context.Context, q LeaderboardQuery) (domain.LeaderboardRun, error) {
	run, err := r.board.Compute(ctx, q)
	if err != nil {
		return domain.LeaderboardRun{}, fmt.Errorf("refresher: %s: %w", q.Metric, err)
	}

	previous := r.previousLeader(ctx, q)

	if r.runs != nil {
		if err := r.runs.SaveRun(ctx, run); err != nil {
			return run, fmt.Errorf("refresher: save run: %w", err)
		}
	}

	if r.bus != nil {
		payload, err := json.Marshal(updateEvent(run))
		if err == nil {
			err = r.bus.Publish(ctx, LeaderboardChannel, payload)
		}
		if err != nil {
			r.logger.WarnContext(ctx, "publish leaderboard failed",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	var archivePath string
	if r.archiver != nil {
		archivePath, err = r.archiver.Archive(ctx, run)
		if err != nil {
			r.logger.WarnContext(ctx, "archive leaderboard failed",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	leader := run.Leader()
	r.setLeader(q, leader)
	if leader != "" && previous != "" && leader != previous {
		r.alertLeaderChange(ctx, run, previous, leader)
	}

	if r.audit != nil {
		if auditErr := r.audit.Log(ctx, "leaderboard_refreshed", map[string]any{
			"run_id":       run.ID,
			"metric":       string(run.Metric),
			"builder_only": run.BuilderOnly,
			"ranked":       len(run.Records),
			"leader":       leader,
			"archive_path": archivePath,
		}); auditErr != nil {
			r.logger.WarnContext(ctx, "audit log failed", slog.String("error", auditErr.Error()))
		}
	}

	r.logger.InfoContext(ctx, "leaderboard refreshed",
		slog.String("run_id", run.ID),
		slog.String("metric", string(run.Metric)),
		slog.Int("ranked", len(run.Records)),
		slog.String("leader", leader),
	)
	return run, nil
}

// previousLeader prefers the in-memory leader and falls back to the last
// persisted run so a restart does not swallow a change.
func (r *LeaderboardRefresher) previousLeader(ctx context.Context, q LeaderboardQuery) string {
	r.mu.Lock()
	leader, ok := r.leaders[leaderKey(q)]
	r.mu.Unlock()
	if ok || r.runs == nil {
		return leader
	}
	last, err := r.runs.LatestRun(ctx, q.Metric, q.BuilderOnly)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.WarnContext(ctx, "load previous run failed", slog.String("error", err.Error()))
		}
		return ""
	}
	return last.Leader()
}

func (r *LeaderboardRefresher) setLeader(q LeaderboardQuery, leader string) {
	r.mu.Lock()
	r.leaders[leaderKey(q)] = leader
	r.mu.Unlock()
}

func (r *LeaderboardRefresher) alertLeaderChange(ctx context.Context, run domain.LeaderboardRun, previous, leader string) {
	if r.alerts == nil {
		return
	}
	title := fmt.Sprintf("New %s leader", run.Metric)
	msg := fmt.Sprintf("%s overtook %s (value %.4f, builderOnly=%t)",
		leader, previous, run.Records[0].MetricValue, run.BuilderOnly)
	if err := r.alerts.Notify(ctx, EventLeaderChanged, title, msg); err != nil {
		r.logger.WarnContext(ctx, "leader change alert failed", slog.String("error", err.Error()))
	}
}

func leaderKey(q LeaderboardQuery) string {
	return fmt.Sprintf("%s|%t|%s", q.Metric, q.BuilderOnly, q.Coin)
}

// UpdateEvent is the signal bus payload for a refreshed leaderboard.
type UpdateEvent struct {
	Event       string           `json:"event"`
	RunID       string           `json:"run_id"`
	Metric      string           `json:"metric"`
	Coin        string           `json:"coin,omitempty"`
	BuilderOnly bool             `json:"builder_only"`
	Leader      string           `json:"leader,omitempty"`
	ComputedAt  time.Time        `json:"computed_at"`
	Records     []UpdateEntryRow `json:"records"`
}

// UpdateEntryRow is one ranked row of an UpdateEvent.
type UpdateEntryRow struct {
	Rank        int     `json:"rank"`
	User        string  `json:"user"`
	MetricValue float64 `json:"metricValue"`
	TradeCount  int     `json:"tradeCount"`
	Tainted     bool    `json:"tainted"`
}

func updateEvent(run domain.LeaderboardRun) UpdateEvent {
	rows := make([]UpdateEntryRow, len(run.Records))
	for i, rec := range run.Records {
		rows[i] = UpdateEntryRow{
			Rank:        rec.Rank,
			User:        rec.User,
			MetricValue: rec.MetricValue,
			TradeCount:  rec.TradeCount,
			Tainted:     rec.Tainted,
		}
	}
	return UpdateEvent{
		Event:       "leaderboard_updated",
		RunID:       run.ID,
		Metric:      string(run.Metric),
		Coin:        run.Coin,
		BuilderOnly: run.BuilderOnly,
		Leader:      run.Leader(),
		ComputedAt:  run.ComputedAt,
		Records:     rows,
	}
}
