// Package auth implements the session and token lifecycle: credential checks,
// refresh-secret rotation with replay detection, and session revocation.
package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"tokentrail/internal/security"
	sessiondomain "tokentrail/internal/session/domain"
	userdomain "tokentrail/internal/user/domain"
)

// Sentinel errors for the auth service; the HTTP handler maps them to status codes.
var (
	ErrEmailInvalid       = errors.New("invalid email format")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionInvalid     = errors.New("invalid or expired session")
	ErrRotationConflict   = errors.New("session rotation conflict")
)

const minPasswordLength = 8

// SessionData is the triple returned to a freshly authenticated client.
// RefreshSecret is plaintext and leaves the process exactly once, in the
// response that carries this value.
type SessionData struct {
	UserID        string
	SessionID     string
	AccessToken   string
	RefreshSecret string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	ListActive(ctx context.Context) ([]*sessiondomain.Session, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	RevokeIfActive(ctx context.Context, id string, at time.Time) (bool, error)
	RevokeAllByUser(ctx context.Context, userID string, at time.Time) error
}

// Service orchestrates signup, signin, rotation, and revocation.
type Service struct {
	users      UserRepo
	sessions   SessionRepo
	hasher     *security.Hasher
	tokens     *security.TokenProvider
	refreshTTL time.Duration
}

// NewService returns a Service with the given dependencies.
func NewService(users UserRepo, sessions SessionRepo, hasher *security.Hasher, tokens *security.TokenProvider, refreshTTL time.Duration) *Service {
	return &Service{
		users:      users,
		sessions:   sessions,
		hasher:     hasher,
		tokens:     tokens,
		refreshTTL: refreshTTL,
	}
}

// Signup creates a user with the given email and password and opens the first
// session. Email is lowercased and trimmed before use.
func (s *Service) Signup(ctx context.Context, email, password, userAgent, ip string) (*SessionData, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	user := &userdomain.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    time.Now().UTC(),
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.CreateSession(ctx, user.ID, userAgent, ip)
}

// Signin authenticates email/password and opens a new session. Unknown email
// and wrong password both return ErrInvalidCredentials so callers cannot
// enumerate accounts.
func (s *Service) Signin(ctx context.Context, email, password, userAgent, ip string) (*SessionData, error) {
	userID, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.CreateSession(ctx, userID, userAgent, ip)
}

// Authenticate verifies email/password and returns the user id, or
// ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return user.ID, nil
}

// CreateSession generates a refresh secret, persists a new active session
// holding its hash, and signs an access token bound to (userID, sessionID).
func (s *Service) CreateSession(ctx context.Context, userID, userAgent, ip string) (*SessionData, error) {
	secret, err := security.GenerateRefreshSecret()
	if err != nil {
		return nil, err
	}
	secretHash, err := s.hasher.Hash([]byte(secret))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &sessiondomain.Session{
		ID:               uuid.New().String(),
		UserID:           userID,
		RefreshTokenHash: secretHash,
		UserAgent:        userAgent,
		IP:               ip,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.refreshTTL),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	accessToken, _, err := s.tokens.IssueAccess(userID, sess.ID, "")
	if err != nil {
		return nil, err
	}
	return &SessionData{
		UserID:        userID,
		SessionID:     sess.ID,
		AccessToken:   accessToken,
		RefreshSecret: secret,
	}, nil
}

// Rotate exchanges a presented refresh secret for a fresh session and token
// pair, consuming the old session.
//
// Resolution scans active sessions and verifies the secret against each
// stored hash in turn; there is no reverse index because only one-way hashes
// are persisted. The revoke is a single conditional transition in the store:
// of two concurrent rotations of the same secret exactly one wins, the other
// gets ErrRotationConflict. A replayed secret no longer resolves (its row is
// revoked) and returns ErrSessionInvalid.
func (s *Service) Rotate(ctx context.Context, presentedSecret string) (*SessionData, error) {
	if presentedSecret == "" {
		return nil, ErrSessionInvalid
	}
	candidates, err := s.sessions.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	var match *sessiondomain.Session
	for _, c := range candidates {
		if s.hasher.Compare(c.RefreshTokenHash, []byte(presentedSecret)) == nil {
			match = c
			break
		}
	}
	if match == nil {
		return nil, ErrSessionInvalid
	}
	won, err := s.sessions.RevokeIfActive(ctx, match.ID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrRotationConflict
	}
	return s.CreateSession(ctx, match.UserID, match.UserAgent, match.IP)
}

// ResolveSession returns the active session whose refresh hash verifies
// against the presented secret, or nil when nothing matches.
func (s *Service) ResolveSession(ctx context.Context, presentedSecret string) (*sessiondomain.Session, error) {
	if presentedSecret == "" {
		return nil, nil
	}
	candidates, err := s.sessions.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if s.hasher.Compare(c.RefreshTokenHash, []byte(presentedSecret)) == nil {
			return c, nil
		}
	}
	return nil, nil
}

// RevokeSession revokes one session. Idempotent: revoking an already-revoked
// or expired session is a no-op, not an error.
func (s *Service) RevokeSession(ctx context.Context, sessionID string) error {
	_, err := s.sessions.RevokeIfActive(ctx, sessionID, time.Now().UTC())
	return err
}

// RevokeAllSessions revokes every active session of the user ("signout
// everywhere"). Idempotent.
func (s *Service) RevokeAllSessions(ctx context.Context, userID string) error {
	return s.sessions.RevokeAllByUser(ctx, userID, time.Now().UTC())
}

// Sessions lists the user's active sessions.
func (s *Service) Sessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error) {
	return s.sessions.ListActiveByUser(ctx, userID)
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if email == "" || !emailPattern.MatchString(email) {
		return ErrEmailInvalid
	}
	return nil
}
