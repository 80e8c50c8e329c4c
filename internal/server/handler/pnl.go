package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
	"github.com/alanyoungcy/hlchallenge/internal/service"
)

// PnLService defines the methods that the PnL handler requires.
type PnLService interface {
	Summary(ctx context.Context, q service.PnLQuery) (domain.PnLSummary, error)
}

// PnLHandler serves realized PnL summaries.
type PnLHandler struct {
	pnl    PnLService
	logger *slog.Logger
}

// NewPnLHandler creates a PnLHandler.
func NewPnLHandler(pnl PnLService, logger *slog.Logger) *PnLHandler {
	return &PnLHandler{pnl: pnl, logger: logger}
}

type pnlResponse struct {
	User        string   `json:"user"`
	RealizedPnl float64  `json:"realizedPnl"`
	ReturnPct   *float64 `json:"returnPct"`
	FeesPaid    float64  `json:"feesPaid"`
	Volume      float64  `json:"volume"`
	TradeCount  int      `json:"tradeCount"`
	Tainted     *bool    `json:"tainted,omitempty"`
}

// Summary returns realizedPnl, returnPct, feesPaid, volume and tradeCount.
// tainted is included only for builder-only requests.
// GET /v1/pnl?user=0x...&coin=&fromMs=&toMs=&builderOnly=&maxStartCapital=
func (h *PnLHandler) Summary(w http.ResponseWriter, r *http.Request) {
	uq, err := parseUserQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxStart, err := optFloat(r.URL.Query().Get("maxStartCapital"), "maxStartCapital")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sum, err := h.pnl.Summary(r.Context(), service.PnLQuery{UserQuery: uq, MaxStartCapital: maxStart})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to compute pnl")
		return
	}

	resp := pnlResponse{
		User:        sum.User,
		RealizedPnl: sum.RealizedPnl,
		ReturnPct:   sum.ReturnPct,
		FeesPaid:    sum.FeesPaid,
		Volume:      sum.Volume,
		TradeCount:  sum.TradeCount,
	}
	if sum.BuilderOnly {
		tainted := sum.Tainted
		resp.Tainted = &tainted
	}
	writeJSON(w, http.StatusOK, resp)
}
