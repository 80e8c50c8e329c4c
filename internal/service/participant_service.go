package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

// Audit events written by ParticipantService.
const (
	EventParticipantRegistered  = "participant_registered"
	EventParticipantDeactivated = "participant_deactivated"
)

// FillInvalidator drops cached fills for a user.
type FillInvalidator interface {
	Invalidate(ctx context.Context, user string) error
}

// ParticipantService manages the challenge roster.
type ParticipantService struct {
	store  domain.ParticipantStore
	audit  domain.AuditStore
	cache  FillInvalidator
	logger *slog.Logger
}

// NewParticipantService creates a ParticipantService. audit and cache may be
// nil.
func NewParticipantService(
	store domain.ParticipantStore,
	audit domain.AuditStore,
	cache FillInvalidator,
	logger *slog.Logger,
) *ParticipantService {
	return &ParticipantService{
		store:  store,
		audit:  audit,
		cache:  cache,
		logger: logger,
	}
}

// List returns the active participants.
func (s *ParticipantService) List(ctx context.Context) ([]domain.Participant, error) {
	ps, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("participant_service: %w", err)
	}
	return ps, nil
}

// Register adds or reactivates a participant. Cached fills for the wallet are
// dropped so the next computation starts from the exchange.
func (s *ParticipantService) Register(ctx context.Context, p domain.Participant) error {
	p.User = strings.TrimSpace(p.User)
	if !common.IsHexAddress(p.User) {
		return fmt.Errorf("participant_service: user %q is not a hex address: %w", p.User, domain.ErrInvalidQuery)
	}
	if err := s.store.Register(ctx, p); err != nil {
		return fmt.Errorf("participant_service: %w", err)
	}
	s.logger.InfoContext(ctx, "participant_service: registered", slog.String("user", p.User))

	s.invalidate(ctx, p.User)
	s.record(ctx, EventParticipantRegistered, map[string]any{
		"user":         p.User,
		"display_name": p.DisplayName,
	})
	return nil
}

// Deactivate removes a participant from future leaderboards.
func (s *ParticipantService) Deactivate(ctx context.Context, user string) error {
	user = strings.TrimSpace(user)
	if !common.IsHexAddress(user) {
		return fmt.Errorf("participant_service: user %q is not a hex address: %w", user, domain.ErrInvalidQuery)
	}
	if err := s.store.Deactivate(ctx, user); err != nil {
		return fmt.Errorf("participant_service: %w", err)
	}
	s.logger.InfoContext(ctx, "participant_service: deactivated", slog.String("user", user))

	s.invalidate(ctx, user)
	s.record(ctx, EventParticipantDeactivated, map[string]any{"user": user})
	return nil
}

// Seed registers every statically configured user. It is run at startup so a
// fresh database ranks the same wallets as the config file.
func (s *ParticipantService) Seed(ctx context.Context, users []string) error {
	var errs []error
	for _, u := range users {
		if err := s.Register(ctx, domain.Participant{User: u}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *ParticipantService) invalidate(ctx context.Context, user string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, user); err != nil {
		s.logger.WarnContext(ctx, "participant_service: fill cache invalidation failed",
			slog.String("user", user),
			slog.String("error", err.Error()),
		)
	}
}

func (s *ParticipantService) record(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "participant_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
