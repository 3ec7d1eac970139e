package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/hypeshelf/internal/auth"
	"github.com/sakif/hypeshelf/internal/service"
)

const stateCookie = "oauth_state"

// LoginProvider is the OAuth2/OIDC provider the login flow talks to.
// *auth.Provider implements it.
type LoginProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.IdentityClaims, error)
}

// AuthHandler runs the browser login flow and answers "who am I".
//
//   - HandleLogin    → redirect to the provider
//   - HandleCallback → verify the provider's answer, set the session cookie
//   - HandleLogout   → clear the session cookie
//   - HandleMe       → the caller's user record, or null
type AuthHandler struct {
	provider     LoginProvider // nil when login is not configured
	sessions     *service.AuthService
	identity     *service.IdentityService
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(
	provider LoginProvider,
	sessions *service.AuthService,
	identity *service.IdentityService,
	secureCookie bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		provider:     provider,
		sessions:     sessions,
		identity:     identity,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// HandleLogin redirects the browser to the provider.
//
// HTTP: GET /auth/login
//
// A random state goes into a short-lived HttpOnly cookie and the
// authorization URL; the callback only proceeds when both match.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   "login_unavailable",
			Message: "login is not configured",
		})
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the login.
//
// HTTP: GET /auth/callback?code=xxx&state=yyy
//
//  1. check the state against the cookie
//  2. exchange the code and verify the returned ID token
//  3. issue a session token in the HttpOnly "token" cookie
//  4. redirect to the app
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		http.Error(w, "login is not configured", http.StatusServiceUnavailable)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	claims, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	sess, err := h.sessions.StartSession(r.Context(), claims)
	if err != nil {
		h.logger.Error("auth callback: starting session failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /auth/logout
//
// The token itself stays valid until it expires; without the cookie the
// browser no longer sends it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the caller's user record, or null for anonymous callers
// and identities that have not been synced yet.
//
// HTTP: GET /api/me
// Auth: optional
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	sub, _ := auth.SubjectFromContext(r.Context())
	user, err := h.identity.CurrentUser(r.Context(), sub)
	if err != nil {
		h.logger.Error("HandleMe: lookup failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
