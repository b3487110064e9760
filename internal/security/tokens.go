package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, forged, or expired.
	// The cases are deliberately collapsed: callers get no more detail than
	// "not valid".
	ErrInvalidToken = errors.New("invalid token")
)

// AccessClaims holds JWT claims for the access token. Subject is the user id;
// SessionID binds the token to the session that issued it.
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid,omitempty"`
	Email     string `json:"email,omitempty"`
}

// TokenProvider issues and validates short-lived access JWTs signed with
// HS256 and a process-lifetime symmetric secret. Access tokens are
// self-contained: validation never touches the session store, so a token
// stays valid until its natural expiry even after its session is revoked.
type TokenProvider struct {
	secret    []byte
	accessTTL time.Duration
}

// NewTokenProvider returns a TokenProvider signing with the given symmetric
// secret. accessTTL bounds the trust window after session revocation.
func NewTokenProvider(secret []byte, accessTTL time.Duration) *TokenProvider {
	return &TokenProvider{secret: secret, accessTTL: accessTTL}
}

// IssueAccess issues a short-lived access JWT for the given user and session.
// email is optional and omitted from claims when empty. Returns the token
// string and its expiration time.
func (p *TokenProvider) IssueAccess(userID, sessionID, email string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
		Email:     email,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ValidateAccess parses and validates the access token (signature and expiry).
// Returns the claims or ErrInvalidToken.
func (p *TokenProvider) ValidateAccess(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
