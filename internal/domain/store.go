package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// Participant is a wallet registered for the trading challenge.
type Participant struct {
	User         string
	DisplayName  string
	Active       bool
	RegisteredAt time.Time
}

// ParticipantStore persists challenge participants.
type ParticipantStore interface {
	Register(ctx context.Context, p Participant) error
	Deactivate(ctx context.Context, user string) error
	ListActive(ctx context.Context) ([]Participant, error)
}

// LeaderboardStore persists computed leaderboard runs.
type LeaderboardStore interface {
	SaveRun(ctx context.Context, run LeaderboardRun) error
	LatestRun(ctx context.Context, metric Metric, builderOnly bool) (LeaderboardRun, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
