package domain

import "time"

// Session is a single refresh lineage. RefreshTokenHash is the Argon2id hash
// of the one refresh secret currently valid for this row; the plaintext is
// never stored. Rotation never rewrites this field — it revokes the row and
// inserts a new one, so revoked rows form an audit trail of consumed secrets.
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	UserAgent        string // optional provenance, set at creation
	IP               string // optional provenance, set at creation
	CreatedAt        time.Time
	LastUsedAt       *time.Time // nil until the refresh secret is consumed
	ExpiresAt        time.Time
	RevokedAt        *time.Time // nil when not revoked; non-nil is terminal
}

// Active reports whether the session is usable at the given time:
// not revoked and not past expiry.
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}
