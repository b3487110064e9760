package auth

import (
	"net/http"
	"time"
)

// refreshCookiePath scopes the cookie to the refresh endpoint so browsers do
// not attach the secret to any other request.
const refreshCookiePath = "/auth/refresh"

// CookieBinder attaches and clears the refresh secret as an http-only,
// SameSite=Lax cookie scoped to the refresh endpoint. Clearing uses identical
// scoping attributes so browsers match and remove the cookie.
type CookieBinder struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// Set writes the refresh cookie carrying secret.
func (b *CookieBinder) Set(w http.ResponseWriter, secret string) {
	http.SetCookie(w, &http.Cookie{
		Name:     b.Name,
		Value:    secret,
		Path:     refreshCookiePath,
		MaxAge:   int(b.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   b.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear removes the refresh cookie.
func (b *CookieBinder) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     b.Name,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   b.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Read returns the refresh secret from the request cookie, or "" if absent.
func (b *CookieBinder) Read(r *http.Request) string {
	c, err := r.Cookie(b.Name)
	if err != nil {
		return ""
	}
	return c.Value
}
