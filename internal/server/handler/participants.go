package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

// ParticipantService defines the methods that the participant handler requires.
type ParticipantService interface {
	List(ctx context.Context) ([]domain.Participant, error)
	Register(ctx context.Context, p domain.Participant) error
	Deactivate(ctx context.Context, user string) error
}

// ParticipantHandler manages the challenge roster.
type ParticipantHandler struct {
	participants ParticipantService
	logger       *slog.Logger
}

// NewParticipantHandler creates a ParticipantHandler.
func NewParticipantHandler(participants ParticipantService, logger *slog.Logger) *ParticipantHandler {
	return &ParticipantHandler{participants: participants, logger: logger}
}

type participantJSON struct {
	User         string `json:"user"`
	DisplayName  string `json:"displayName,omitempty"`
	Active       bool   `json:"active"`
	RegisteredAt string `json:"registeredAt,omitempty"`
}

type registerRequest struct {
	User        string `json:"user"`
	DisplayName string `json:"displayName"`
}

const maxRegisterBody = 4 << 10

// List returns the active participants.
// GET /v1/participants
func (h *ParticipantHandler) List(w http.ResponseWriter, r *http.Request) {
	ps, err := h.participants.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list participants")
		return
	}

	out := make([]participantJSON, 0, len(ps))
	for _, p := range ps {
		pj := participantJSON{User: p.User, DisplayName: p.DisplayName, Active: p.Active}
		if !p.RegisteredAt.IsZero() {
			pj.RegisteredAt = p.RegisteredAt.UTC().Format(time.RFC3339)
		}
		out = append(out, pj)
	}
	writeJSON(w, http.StatusOK, out)
}

// Register adds or reactivates a participant.
// POST /v1/participants {"user": "0x...", "displayName": "..."}
func (h *ParticipantHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegisterBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := domain.Participant{User: req.User, DisplayName: req.DisplayName, Active: true}
	if err := h.participants.Register(r.Context(), p); err != nil {
		writeServiceError(w, r, h.logger, err, "failed to register participant")
		return
	}
	writeJSON(w, http.StatusCreated, participantJSON{User: p.User, DisplayName: p.DisplayName, Active: true})
}

// Deactivate removes a participant from future leaderboards.
// DELETE /v1/participants/{user}
func (h *ParticipantHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.participants.Deactivate(r.Context(), r.PathValue("user")); err != nil {
		writeServiceError(w, r, h.logger, err, "failed to deactivate participant")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
