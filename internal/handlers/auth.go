package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"media-shelf/internal/database"
	"media-shelf/internal/logging"
	"media-shelf/internal/metrics"
	"media-shelf/internal/middleware"
)

const (
	// SessionCookieName is the name of the session cookie
	SessionCookieName = "shelf_session"

	bearerPrefix = "Bearer "
)

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse is returned by the authentication endpoints.
type AuthResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Username string `json:"username,omitempty"`
	Token    string `json:"token,omitempty"`
	IsAdmin  bool   `json:"isAdmin,omitempty"`
}

type sessionKey struct{}

// session is attached to the request context by RequireAuth.
type session struct {
	username string
	token    string
}

func sessionFrom(ctx context.Context) (session, bool) {
	s, ok := ctx.Value(sessionKey{}).(session)
	return s, ok
}

// requestToken returns the bearer token, falling back to the session cookie.
func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(auth, bearerPrefix))
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// Login checks credentials and returns the user's session token, both in
// the body and as a cookie. Unknown users and wrong passwords get the same
// response.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, result, err := h.db.Verify(r.Context(), req.Username, req.Password)
	if err != nil {
		logging.Error("Login check for %q failed: %v", req.Username, err)
		metrics.AuthAttemptsTotal.WithLabelValues("error").Inc()
		writeJSONError(w, "Login failed", http.StatusInternalServerError)
		return
	}

	metrics.AuthAttemptsTotal.WithLabelValues(result.String()).Inc()
	if result != database.VerifyOK {
		logging.Warn("Failed login attempt for %q (%s)", req.Username, result)
		writeJSONError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	isAdmin, err := h.db.VerifyAdmin(r.Context(), token)
	if err != nil {
		logging.Error("Failed to read admin flag for %q: %v", req.Username, err)
	}

	middleware.SetUsername(r.Context(), req.Username)
	logging.Info("User %q logged in", req.Username)

	setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, AuthResponse{
		Success:  true,
		Username: req.Username,
		Token:    token,
		IsAdmin:  isAdmin,
	})
}

// Logout revokes the caller's token. Logging out without a session succeeds.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token := requestToken(r); token != "" {
		if err := h.db.Logout(r.Context(), token); err != nil {
			logging.Error("failed to revoke token during logout: %v", err)
			writeJSONError(w, "Logout failed", http.StatusInternalServerError)
			return
		}
	}

	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: "Logged out successfully",
	})
}

// CheckAuth reports who the caller is.
func (h *Handlers) CheckAuth(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())

	isAdmin, err := h.db.VerifyAdmin(r.Context(), s.token)
	if err != nil {
		writeJSONError(w, "Failed to check session", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Success:  true,
		Username: s.username,
		IsAdmin:  isAdmin,
	})
}

// RequireAuth rejects requests without a valid token and attaches the
// session to the request context.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		username, ok, err := h.db.VerifyToken(r.Context(), token)
		if err != nil {
			logging.Error("Token check failed: %v", err)
			writeJSONError(w, "Failed to check session", http.StatusInternalServerError)
			return
		}
		if !ok {
			clearSessionCookie(w)
			writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		middleware.SetUsername(r.Context(), username)
		ctx := context.WithValue(r.Context(), sessionKey{}, session{username: username, token: token})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after RequireAuth.
func (h *Handlers) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFrom(r.Context())
		if !ok {
			writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		isAdmin, err := h.db.VerifyAdmin(r.Context(), s.token)
		if err != nil {
			logging.Error("Admin check failed: %v", err)
			writeJSONError(w, "Failed to check session", http.StatusInternalServerError)
			return
		}
		if !isAdmin {
			logging.Warn("User %q denied access to %s", s.username, r.URL.Path)
			writeJSONError(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
