package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"tokentrail/internal/db"
	"tokentrail/internal/session/domain"
)

const sessionColumns = `id, user_id, refresh_token_hash, user_agent, ip, created_at, last_used_at, expires_at, revoked_at`

type PostgresRepository struct {
	db db.Querier
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(q db.Querier) *PostgresRepository {
	return &PostgresRepository{db: q}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sessionRepo.GetByID: %w", err)
	}
	return s, nil
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.UserID, s.RefreshTokenHash, nullIfEmpty(s.UserAgent), nullIfEmpty(s.IP),
		s.CreatedAt, s.LastUsedAt, s.ExpiresAt, s.RevokedAt)
	if err != nil {
		return fmt.Errorf("sessionRepo.Create: %w", err)
	}
	return nil
}

// ListActive returns all sessions that are not revoked and not expired.
// The read may run at weak isolation; rotation correctness is enforced by
// RevokeIfActive, not by this scan.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]*domain.Session, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE revoked_at IS NULL AND expires_at > now()`)
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.ListActive: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows, "sessionRepo.ListActive")
}

// ListActiveByUser returns the user's sessions that are not revoked and not expired.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > now()
		 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sessionRepo.ListActiveByUser: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows, "sessionRepo.ListActiveByUser")
}

// RevokeIfActive marks the session revoked iff it is still active: a single
// conditional UPDATE, so of two concurrent calls exactly one reports true.
// Also stamps last_used_at, since the only caller-visible transition out of
// Active consumes the refresh secret.
func (r *PostgresRepository) RevokeIfActive(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE sessions SET revoked_at = $2, last_used_at = $2
		 WHERE id = $1 AND revoked_at IS NULL AND expires_at > $2`,
		id, at)
	if err != nil {
		return false, fmt.Errorf("sessionRepo.RevokeIfActive: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RevokeAllByUser revokes all of the user's still-active sessions. Idempotent:
// already-revoked rows are untouched.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE sessions SET revoked_at = $2
		 WHERE user_id = $1 AND revoked_at IS NULL`,
		userID, at)
	if err != nil {
		return fmt.Errorf("sessionRepo.RevokeAllByUser: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	s := &domain.Session{}
	var userAgent, ip *string
	err := row.Scan(&s.ID, &s.UserID, &s.RefreshTokenHash, &userAgent, &ip,
		&s.CreatedAt, &s.LastUsedAt, &s.ExpiresAt, &s.RevokedAt)
	if err != nil {
		return nil, err
	}
	if userAgent != nil {
		s.UserAgent = *userAgent
	}
	if ip != nil {
		s.IP = *ip
	}
	return s, nil
}

func collectSessions(rows pgx.Rows, op string) ([]*domain.Session, error) {
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
