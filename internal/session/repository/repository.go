package repository

import (
	"context"
	"time"

	"tokentrail/internal/session/domain"
)

// Repository defines persistence for sessions. Sessions are never deleted;
// revocation is the only mutation besides last-used bookkeeping.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// ListActive returns every active session (not revoked, not expired).
	// Rotation scans these to resolve a presented refresh secret.
	ListActive(ctx context.Context) ([]*domain.Session, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error)
	// RevokeIfActive atomically revokes the session iff it is still active at
	// the given time. Returns true iff this call performed the transition.
	RevokeIfActive(ctx context.Context, id string, at time.Time) (bool, error)
	RevokeAllByUser(ctx context.Context, userID string, at time.Time) error
}
