package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
	"github.com/alanyoungcy/hlchallenge/internal/service"
)

// LeaderboardService defines the methods that the leaderboard handler requires.
type LeaderboardService interface {
	Compute(ctx context.Context, q service.LeaderboardQuery) (domain.LeaderboardRun, error)
	Latest(ctx context.Context, metric domain.Metric, builderOnly bool) (domain.LeaderboardRun, error)
}

// LeaderboardHandler serves ranked challenge leaderboards.
type LeaderboardHandler struct {
	board  LeaderboardService
	logger *slog.Logger
}

// NewLeaderboardHandler creates a LeaderboardHandler.
func NewLeaderboardHandler(board LeaderboardService, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, logger: logger}
}

type leaderboardRow struct {
	Rank        int     `json:"rank"`
	User        string  `json:"user"`
	MetricValue float64 `json:"metricValue"`
	TradeCount  int     `json:"tradeCount"`
	Tainted     bool    `json:"tainted"`
}

type latestResponse struct {
	RunID       string           `json:"runId"`
	Metric      string           `json:"metric"`
	Coin        string           `json:"coin,omitempty"`
	BuilderOnly bool             `json:"builderOnly"`
	FromMs      *int64           `json:"fromMs,omitempty"`
	ToMs        *int64           `json:"toMs,omitempty"`
	ComputedAt  string           `json:"computedAt"`
	Entries     []leaderboardRow `json:"entries"`
}

func rows(records []domain.MetricRecord) []leaderboardRow {
	out := make([]leaderboardRow, 0, len(records))
	for _, r := range records {
		out = append(out, leaderboardRow{
			Rank:        r.Rank,
			User:        r.User,
			MetricValue: r.MetricValue,
			TradeCount:  r.TradeCount,
			Tainted:     r.Tainted,
		})
	}
	return out
}

// Compute ranks every participant live. The run ID is returned in the
// X-Run-ID header so the body stays a plain ranked list.
// GET /v1/leaderboard?coin=&fromMs=&toMs=&metric=pnl|volume|returnPct&builderOnly=&maxStartCapital=
func (h *LeaderboardHandler) Compute(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	metric, err := domain.ParseMetric(params.Get("metric"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "invalid metric")
		return
	}
	from, err := optInt64(params.Get("fromMs"), "fromMs")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := optInt64(params.Get("toMs"), "toMs")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	builderOnly, err := optBool(params.Get("builderOnly"), "builderOnly")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxStart, err := optFloat(params.Get("maxStartCapital"), "maxStartCapital")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.board.Compute(r.Context(), service.LeaderboardQuery{
		Coin:            strings.TrimSpace(params.Get("coin")),
		FromMs:          from,
		ToMs:            to,
		Metric:          metric,
		BuilderOnly:     builderOnly,
		MaxStartCapital: maxStart,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to compute leaderboard")
		return
	}

	w.Header().Set("X-Run-ID", run.ID)
	writeJSON(w, http.StatusOK, rows(run.Records))
}

// Latest returns the most recent persisted run for a metric.
// GET /v1/leaderboard/latest?metric=&builderOnly=
func (h *LeaderboardHandler) Latest(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	metric, err := domain.ParseMetric(params.Get("metric"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, "invalid metric")
		return
	}
	builderOnly, err := optBool(params.Get("builderOnly"), "builderOnly")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.board.Latest(r.Context(), metric, builderOnly)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to load leaderboard")
		return
	}

	writeJSON(w, http.StatusOK, latestResponse{
		RunID:       run.ID,
		Metric:      string(run.Metric),
		Coin:        run.Coin,
		BuilderOnly: run.BuilderOnly,
		FromMs:      run.FromMs,
		ToMs:        run.ToMs,
		ComputedAt:  run.ComputedAt.UTC().Format(time.RFC3339),
		Entries:     rows(run.Records),
	})
}
