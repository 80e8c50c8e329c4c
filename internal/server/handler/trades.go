package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
	"github.com/alanyoungcy/hlchallenge/internal/service"
)

// TradeService defines the methods that the trade handler requires.
type TradeService interface {
	List(ctx context.Context, q service.UserQuery) ([]domain.Fill, error)
	TargetBuilder() string
}

// TradeHandler serves normalized trades.
type TradeHandler struct {
	trades TradeService
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades TradeService, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logger}
}

// tradeJSON uses the exchange's side codes (B bid, A ask) and string numerics.
// Builder is the target builder for attributed fills and null otherwise.
type tradeJSON struct {
	TimeMs    int64   `json:"timeMs"`
	Coin      string  `json:"coin"`
	Side      string  `json:"side"`
	Px        string  `json:"px"`
	Sz        string  `json:"sz"`
	Fee       string  `json:"fee"`
	ClosedPnl string  `json:"closedPnl"`
	Tid       int64   `json:"tid"`
	Hash      string  `json:"hash,omitempty"`
	Dir       string  `json:"dir,omitempty"`
	Builder   *string `json:"builder"`
}

// List returns the user's trades in execution order.
// GET /v1/trades?user=0x...&coin=&fromMs=&toMs=&builderOnly=
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := parseUserQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fills, err := h.trades.List(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list trades")
		return
	}

	target := h.trades.TargetBuilder()
	out := make([]tradeJSON, 0, len(fills))
	for _, f := range fills {
		side := "B"
		if f.Side == domain.SideSell {
			side = "A"
		}
		row := tradeJSON{
			TimeMs:    f.TimeMs,
			Coin:      f.Coin,
			Side:      side,
			Px:        decimalString(f.Price),
			Sz:        decimalString(f.Size),
			Fee:       decimalString(f.Fee),
			ClosedPnl: decimalString(f.ClosedPnl),
			Tid:       f.TradeID,
			Hash:      f.Hash,
			Dir:       f.Dir,
		}
		if f.IsTargetBuilder {
			label := target
			row.Builder = &label
		}
		out = append(out, row)
	}
	writeJSON(w, http.StatusOK, out)
}
