package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

// AuditLister reads the audit log.
type AuditLister interface {
	List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error)
}

// AuditHandler exposes the audit log to operators.
type AuditHandler struct {
	audit  AuditLister
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(audit AuditLister, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logger}
}

type auditJSON struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt string         `json:"createdAt"`
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// List returns recent audit entries, newest first.
// GET /v1/audit?limit=&offset=&sinceMs=
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	limit, err := optInt64(params.Get("limit"), "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := optInt64(params.Get("offset"), "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sinceMs, err := optInt64(params.Get("sinceMs"), "sinceMs")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := domain.ListOpts{Limit: defaultAuditLimit}
	if limit != nil && *limit > 0 {
		opts.Limit = int(min(*limit, maxAuditLimit))
	}
	if offset != nil {
		opts.Offset = int(*offset)
	}
	if sinceMs != nil {
		since := time.UnixMilli(*sinceMs).UTC()
		opts.Since = &since
	}

	entries, err := h.audit.List(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list audit log")
		return
	}

	out := make([]auditJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditJSON{
			ID:        e.ID,
			Event:     e.Event,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
