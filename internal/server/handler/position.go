package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
	"github.com/alanyoungcy/hlchallenge/internal/service"
)

// PositionService defines the methods that the position handler requires.
type PositionService interface {
	History(ctx context.Context, q service.UserQuery) ([]domain.Snapshot, error)
}

// PositionHandler serves reconstructed position history.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given service and logger.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logger,
	}
}

// snapshotJSON keeps sizes and prices as decimal strings. Tainted is only
// emitted when the caller asked for builder-only history.
type snapshotJSON struct {
	TimeMs     int64  `json:"timeMs"`
	Coin       string `json:"coin"`
	NetSize    string `json:"netSize"`
	AvgEntryPx string `json:"avgEntryPx"`
	Tainted    *bool  `json:"tainted,omitempty"`
}

// History returns the time-ordered position snapshots of a user.
// GET /v1/positions/history?user=0x...&coin=&fromMs=&toMs=&builderOnly=
func (h *PositionHandler) History(w http.ResponseWriter, r *http.Request) {
	q, err := parseUserQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snaps, err := h.positions.History(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to load position history")
		return
	}

	out := make([]snapshotJSON, 0, len(snaps))
	for _, s := range snaps {
		row := snapshotJSON{
			TimeMs:     s.TimeMs,
			Coin:       s.Coin,
			NetSize:    decimalString(s.NetSize),
			AvgEntryPx: decimalString(s.AvgEntryPx),
		}
		if q.BuilderOnly {
			tainted := s.Tainted
			row.Tainted = &tainted
		}
		out = append(out, row)
	}
	writeJSON(w, http.StatusOK, out)
}
