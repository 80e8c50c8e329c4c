package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
)

// ParticipantStore implements domain.ParticipantStore using PostgreSQL.
type ParticipantStore struct {
	pool *pgxpool.Pool
}

// NewParticipantStore creates a new ParticipantStore backed by the given connection pool.
func NewParticipantStore(pool *pgxpool.Pool) *ParticipantStore {
	return &ParticipantStore{pool: pool}
}

// Register upserts p and marks it active. Wallets are stored lower-case so
// registrations differing only in checksum casing collapse to one row.
func (s *ParticipantStore) Register(ctx context.Context, p domain.Participant) error {
	wallet, err := normalizeWallet(p.User)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO participants (wallet, display_name, active, registered_at, updated_at)
		VALUES ($1, $2, TRUE, NOW(), NOW())
		ON CONFLICT (wallet) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			active = TRUE,
			updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query, wallet, p.DisplayName); err != nil {
		return fmt.Errorf("postgres: register participant %s: %w", wallet, err)
	}
	return nil
}

// Deactivate removes user from future leaderboards. It returns
// domain.ErrNotFound when the wallet was never registered.
func (s *ParticipantStore) Deactivate(ctx context.Context, user string) error {
	wallet, err := normalizeWallet(user)
	if err != nil {
		return err
	}

	const query = `UPDATE participants SET active = FALSE, updated_at = NOW() WHERE wallet = $1`
	tag, err := s.pool.Exec(ctx, query, wallet)
	if err != nil {
		return fmt.Errorf("postgres: deactivate participant %s: %w", wallet, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: deactivate participant %s: %w", wallet, domain.ErrNotFound)
	}
	return nil
}

// ListActive returns active participants, oldest registration first.
func (s *ParticipantStore) ListActive(ctx context.Context) ([]domain.Participant, error) {
	const query = `
		SELECT wallet, display_name, active, registered_at
		FROM participants
		WHERE active
		ORDER BY registered_at ASC, wallet ASC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list participants: %w", err)
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.User, &p.DisplayName, &p.Active, &p.RegisteredAt); err != nil {
			return nil, fmt.Errorf("postgres: scan participant: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list participants rows: %w", err)
	}
	return out, nil
}

func normalizeWallet(user string) (string, error) {
	u := strings.TrimSpace(user)
	if !common.IsHexAddress(u) {
		return "", fmt.Errorf("postgres: wallet %q: %w", user, domain.ErrInvalidQuery)
	}
	return strings.ToLower(common.HexToAddress(u).Hex()), nil
}

var _ domain.ParticipantStore = (*ParticipantStore)(nil)
