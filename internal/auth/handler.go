package auth

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"tokentrail/internal/logger"
	"tokentrail/internal/metrics"
	"tokentrail/internal/server/middleware"
)

// Handler exposes the session lifecycle over HTTP. Refresh secrets travel
// only in the scoped cookie; response bodies carry the access token.
type Handler struct {
	svc     *Service
	cookies *CookieBinder
}

// NewHandler returns an auth handler using the given service and cookie binder.
func NewHandler(svc *Service, cookies *CookieBinder) *Handler {
	return &Handler{svc: svc, cookies: cookies}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// Signup handles POST /auth/signup: 201 with an access token and the refresh
// cookie set, 400 on validation failure, 409 when the email is taken.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.Signups.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	data, err := h.svc.Signup(r.Context(), req.Email, req.Password, r.UserAgent(), clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailInvalid), errors.Is(err, ErrPasswordTooShort):
			metrics.Signups.WithLabelValues("invalid").Inc()
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrEmailTaken):
			metrics.Signups.WithLabelValues("email_taken").Inc()
			writeError(w, http.StatusConflict, "Email already exists")
		default:
			metrics.Signups.WithLabelValues("error").Inc()
			logger.Errorf("signup: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
		}
		return
	}
	metrics.Signups.WithLabelValues("created").Inc()
	h.cookies.Set(w, data.RefreshSecret)
	writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: data.AccessToken})
}

// Signin handles POST /auth/signin: 200 with an access token and the refresh
// cookie set, 401 on bad credentials. Unknown email and wrong password are
// indistinguishable in the response.
func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	data, err := h.svc.Signin(r.Context(), req.Email, req.Password, r.UserAgent(), clientIP(r))
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			metrics.Signins.WithLabelValues("invalid_credentials").Inc()
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		metrics.Signins.WithLabelValues("error").Inc()
		logger.Errorf("signin: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	metrics.Signins.WithLabelValues("ok").Inc()
	h.cookies.Set(w, data.RefreshSecret)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: data.AccessToken})
}

// Refresh handles POST /auth/refresh: rotates the refresh secret presented in
// the cookie. Every typed failure clears the cookie so clients do not loop on
// a dead token.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	secret := h.cookies.Read(r)
	if secret == "" {
		metrics.Refreshes.WithLabelValues("missing").Inc()
		h.cookies.Clear(w)
		writeError(w, http.StatusUnauthorized, "Missing refresh token")
		return
	}
	data, err := h.svc.Rotate(r.Context(), secret)
	if err != nil {
		switch {
		case errors.Is(err, ErrSessionInvalid):
			metrics.Refreshes.WithLabelValues("invalid").Inc()
			h.cookies.Clear(w)
			writeError(w, http.StatusUnauthorized, "Invalid or expired session")
		case errors.Is(err, ErrRotationConflict):
			metrics.Refreshes.WithLabelValues("conflict").Inc()
			h.cookies.Clear(w)
			writeError(w, http.StatusForbidden, "Session rotation failed")
		default:
			metrics.Refreshes.WithLabelValues("error").Inc()
			logger.Errorf("refresh: %v", err)
			writeError(w, http.StatusInternalServerError, "Server error during token refresh")
		}
		return
	}
	metrics.Refreshes.WithLabelValues("rotated").Inc()
	h.cookies.Set(w, data.RefreshSecret)
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: data.AccessToken})
}

// Signout handles POST /auth/signout: best-effort revoke of the session the
// cookie resolves to, then clears the cookie. Always 204.
func (h *Handler) Signout(w http.ResponseWriter, r *http.Request) {
	if secret := h.cookies.Read(r); secret != "" {
		sess, err := h.svc.ResolveSession(r.Context(), secret)
		if err != nil {
			logger.Errorf("signout resolve: %v", err)
		} else if sess != nil {
			if err := h.svc.RevokeSession(r.Context(), sess.ID); err != nil {
				logger.Errorf("signout revoke: %v", err)
			} else {
				metrics.SessionsRevoked.WithLabelValues("signout").Inc()
			}
		}
	}
	h.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

type sessionInfo struct {
	ID         string     `json:"id"`
	UserAgent  string     `json:"userAgent,omitempty"`
	IP         string     `json:"ip,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	ExpiresAt  time.Time  `json:"expiresAt"`
}

// Sessions handles GET /auth/sessions (requires a Bearer access token):
// lists the caller's active sessions. Refresh hashes are never exposed.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.svc.Sessions(r.Context(), userID)
	if err != nil {
		logger.Errorf("sessions list: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	out := make([]sessionInfo, 0, len(list))
	for _, s := range list {
		out = append(out, sessionInfo{
			ID:         s.ID,
			UserAgent:  s.UserAgent,
			IP:         s.IP,
			CreatedAt:  s.CreatedAt,
			LastUsedAt: s.LastUsedAt,
			ExpiresAt:  s.ExpiresAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// SignoutAll handles POST /auth/signout-all (requires a Bearer access token):
// revokes every active session of the caller and clears the cookie. 204.
func (h *Handler) SignoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.RevokeAllSessions(r.Context(), userID); err != nil {
		logger.Errorf("signout-all: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	metrics.SessionsRevoked.WithLabelValues("signout_all").Inc()
	h.cookies.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

// clientIP returns the request's client IP without the port. Behind the chi
// RealIP middleware RemoteAddr may already be a bare IP.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
