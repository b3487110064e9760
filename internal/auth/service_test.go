package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tokentrail/internal/security"
	sessiondomain "tokentrail/internal/session/domain"
	userdomain "tokentrail/internal/user/domain"
)

// memUserRepo is an in-memory UserRepo keyed by normalized email.
type memUserRepo struct {
	mu      sync.Mutex
	byEmail map[string]*userdomain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byEmail: make(map[string]*userdomain.User)}
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) Create(_ context.Context, u *userdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[u.Email]; ok {
		return errors.New("duplicate email")
	}
	cp := *u
	r.byEmail[u.Email] = &cp
	return nil
}

// memSessionRepo is an in-memory SessionRepo. RevokeIfActive performs the
// same conditional transition the store does: it succeeds only while the row
// is active, under a single lock.
type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*sessiondomain.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*sessiondomain.Session)}
}

func (r *memSessionRepo) Create(_ context.Context, s *sessiondomain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *memSessionRepo) ListActive(_ context.Context) ([]*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var out []*sessiondomain.Session
	for _, s := range r.sessions {
		if s.Active(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memSessionRepo) ListActiveByUser(_ context.Context, userID string) ([]*sessiondomain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var out []*sessiondomain.Session
	for _, s := range r.sessions {
		if s.UserID == userID && s.Active(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memSessionRepo) RevokeIfActive(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !s.Active(at) {
		return false, nil
	}
	t := at
	s.RevokedAt = &t
	s.LastUsedAt = &t
	return true, nil
}

func (r *memSessionRepo) RevokeAllByUser(_ context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID && s.Active(at) {
			t := at
			s.RevokedAt = &t
		}
	}
	return nil
}

func (r *memSessionRepo) get(id string) *sessiondomain.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (r *memSessionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// testHasher keeps Argon2id cheap so the suite stays fast.
func testHasher() *security.Hasher {
	return &security.Hasher{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestService() (*Service, *memUserRepo, *memSessionRepo) {
	users := newMemUserRepo()
	sessions := newMemSessionRepo()
	tokens := security.NewTokenProvider([]byte("test-secret-at-least-32-bytes-long"), 15*time.Minute)
	svc := NewService(users, sessions, testHasher(), tokens, 7*24*time.Hour)
	return svc, users, sessions
}

func TestSignupCreatesUserAndSession(t *testing.T) {
	svc, users, sessions := newTestService()
	ctx := context.Background()

	data, err := svc.Signup(ctx, "  Alice@Example.COM ", "correct-horse", "ua/1.0", "10.0.0.1")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if data.AccessToken == "" || data.RefreshSecret == "" {
		t.Fatal("expected access token and refresh secret")
	}

	u, err := users.GetByEmail(ctx, "alice@example.com")
	if err != nil || u == nil {
		t.Fatalf("expected normalized user, got %v, %v", u, err)
	}
	if u.PasswordHash == "correct-horse" {
		t.Fatal("password stored in plaintext")
	}

	sess := sessions.get(data.SessionID)
	if sess == nil {
		t.Fatal("session not persisted")
	}
	if sess.RefreshTokenHash == data.RefreshSecret {
		t.Fatal("refresh secret stored in plaintext")
	}
	if sess.UserAgent != "ua/1.0" || sess.IP != "10.0.0.1" {
		t.Fatalf("provenance not recorded: %q %q", sess.UserAgent, sess.IP)
	}
}

func TestSignupValidation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "not-an-email", "correct-horse", "", ""); !errors.Is(err, ErrEmailInvalid) {
		t.Fatalf("expected ErrEmailInvalid, got %v", err)
	}
	if _, err := svc.Signup(ctx, "bob@example.com", "short", "", ""); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "carol@example.com", "password1", "", ""); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	if _, err := svc.Signup(ctx, "CAROL@example.com", "password2", "", ""); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSigninUniformFailure(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "dave@example.com", "password1", "", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}

	_, errUnknown := svc.Signin(ctx, "nobody@example.com", "password1", "", "")
	_, errWrongPw := svc.Signin(ctx, "dave@example.com", "wrong-password", "", "")
	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", errUnknown)
	}
	if !errors.Is(errWrongPw, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", errWrongPw)
	}
	if errUnknown.Error() != errWrongPw.Error() {
		t.Fatal("failure modes must be indistinguishable")
	}
}

func TestSigninOpensDistinctSession(t *testing.T) {
	svc, _, sessions := newTestService()
	ctx := context.Background()

	first, err := svc.Signup(ctx, "erin@example.com", "password1", "", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	second, err := svc.Signin(ctx, "erin@example.com", "password1", "", "")
	if err != nil {
		t.Fatalf("signin: %v", err)
	}
	if first.SessionID == second.SessionID {
		t.Fatal("signin must open a new session")
	}
	if first.RefreshSecret == second.RefreshSecret {
		t.Fatal("refresh secrets must be unique per session")
	}
	if sessions.count() != 2 {
		t.Fatalf("expected 2 sessions, got %d", sessions.count())
	}
}

func TestRotateConsumesOldSession(t *testing.T) {
	svc, _, sessions := newTestService()
	ctx := context.Background()

	data, err := svc.Signup(ctx, "frank@example.com", "password1", "ua/2.0", "10.0.0.2")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	rotated, err := svc.Rotate(ctx, data.RefreshSecret)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if rotated.SessionID == data.SessionID {
		t.Fatal("rotation must create a new session row")
	}
	if rotated.RefreshSecret == data.RefreshSecret {
		t.Fatal("rotation must mint a new secret")
	}

	old := sessions.get(data.SessionID)
	if old == nil || old.RevokedAt == nil {
		t.Fatal("old session must be revoked, not deleted")
	}

	// Provenance carries forward to the successor session.
	succ := sessions.get(rotated.SessionID)
	if succ.UserAgent != "ua/2.0" || succ.IP != "10.0.0.2" {
		t.Fatalf("provenance not carried: %q %q", succ.UserAgent, succ.IP)
	}

	// Replaying the consumed secret no longer resolves.
	if _, err := svc.Rotate(ctx, data.RefreshSecret); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("replay: expected ErrSessionInvalid, got %v", err)
	}
}

func TestRotateChain(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	r0, err := svc.Signup(ctx, "grace@example.com", "password1", "", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	r1, err := svc.Rotate(ctx, r0.RefreshSecret)
	if err != nil {
		t.Fatalf("first rotation: %v", err)
	}
	r2, err := svc.Rotate(ctx, r1.RefreshSecret)
	if err != nil {
		t.Fatalf("second rotation: %v", err)
	}
	if r2.SessionID == r1.SessionID || r1.SessionID == r0.SessionID {
		t.Fatal("each rotation must mint a fresh session")
	}
	// Only the newest secret is live.
	if _, err := svc.Rotate(ctx, r0.RefreshSecret); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("r0 replay: expected ErrSessionInvalid, got %v", err)
	}
	if _, err := svc.Rotate(ctx, r1.RefreshSecret); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("r1 replay: expected ErrSessionInvalid, got %v", err)
	}
	if _, err := svc.Rotate(ctx, r2.RefreshSecret); err != nil {
		t.Fatalf("r2 must still rotate: %v", err)
	}
}

func TestRotateUnknownSecret(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Rotate(ctx, "deadbeef"); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
	if _, err := svc.Rotate(ctx, ""); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("empty secret: expected ErrSessionInvalid, got %v", err)
	}
}

func TestRotateExpiredSession(t *testing.T) {
	users := newMemUserRepo()
	sessions := newMemSessionRepo()
	tokens := security.NewTokenProvider([]byte("test-secret-at-least-32-bytes-long"), 15*time.Minute)
	svc := NewService(users, sessions, testHasher(), tokens, -time.Hour)
	ctx := context.Background()

	data, err := svc.Signup(ctx, "heidi@example.com", "password1", "", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := svc.Rotate(ctx, data.RefreshSecret); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expired session: expected ErrSessionInvalid, got %v", err)
	}
}

func TestConcurrentRotationSingleWinner(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	data, err := svc.Signup(ctx, "ivan@example.com", "password1", "", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	const racers = 4
	results := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Rotate(ctx, data.RefreshSecret)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrRotationConflict), errors.Is(err, ErrSessionInvalid):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestRevokeSessionIdempotent(t *testing.T) {
	svc, _, sessions := newTestService()
	ctx := context.Background()

	data, err := svc.Signup(ctx, "judy@example.com", "password1", "", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := svc.RevokeSession(ctx, data.SessionID); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := svc.RevokeSession(ctx, data.SessionID); err != nil {
		t.Fatalf("second revoke must be a no-op: %v", err)
	}
	if s := sessions.get(data.SessionID); s == nil || s.RevokedAt == nil {
		t.Fatal("session must remain as a revoked row")
	}
	if _, err := svc.Rotate(ctx, data.RefreshSecret); !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("revoked secret must not rotate, got %v", err)
	}
}

func TestRevokeAllSessions(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Signup(ctx, "kate@example.com", "password1", "", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	second, err := svc.Signin(ctx, "kate@example.com", "password1", "", "")
	if err != nil {
		t.Fatalf("signin: %v", err)
	}

	if err := svc.RevokeAllSessions(ctx, first.UserID); err != nil {
		t.Fatalf("RevokeAllSessions: %v", err)
	}

	list, err := svc.Sessions(ctx, first.UserID)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no active sessions, got %d", len(list))
	}
	for _, secret := range []string{first.RefreshSecret, second.RefreshSecret} {
		if _, err := svc.Rotate(ctx, secret); !errors.Is(err, ErrSessionInvalid) {
			t.Fatalf("revoked secret must not rotate, got %v", err)
		}
	}
}

func TestAccessTokenBoundToSession(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	data, err := svc.Signup(ctx, "leo@example.com", "password1", "", "")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	tokens := security.NewTokenProvider([]byte("test-secret-at-least-32-bytes-long"), 15*time.Minute)
	claims, err := tokens.ValidateAccess(data.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if claims.Subject != data.UserID {
		t.Fatalf("sub = %q, want %q", claims.Subject, data.UserID)
	}
	if claims.SessionID != data.SessionID {
		t.Fatalf("sid = %q, want %q", claims.SessionID, data.SessionID)
	}
}
