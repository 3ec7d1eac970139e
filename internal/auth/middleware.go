package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// SessionCookie is the cookie that carries the session token.
const SessionCookie = "token"

type contextKey string

const subjectKey contextKey = "subject"

var errNoCredentials = errors.New("auth: no credentials")

// Authenticator resolves the verified subject of a request.
//
// A Bearer token is tried as a session token first and then, when an
// IDTokenVerifier is configured, as a provider ID token. Without a Bearer
// header the session cookie is used.
type Authenticator struct {
	sessions *TokenService
	idTokens IDTokenVerifier // nil disables Bearer ID tokens
}

func NewAuthenticator(sessions *TokenService, idTokens IDTokenVerifier) *Authenticator {
	return &Authenticator{sessions: sessions, idTokens: idTokens}
}

// Subject returns the caller's externalId or an error when the request
// carries no valid credential.
func (a *Authenticator) Subject(r *http.Request) (string, error) {
	if raw, ok := bearerToken(r); ok {
		sub, err := a.sessions.Validate(raw)
		if err == nil {
			return sub, nil
		}
		if a.idTokens == nil {
			return "", err
		}
		claims, idErr := a.idTokens.Verify(r.Context(), raw)
		if idErr != nil {
			return "", idErr
		}
		return claims.Subject, nil
	}

	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", errNoCredentials
	}
	return a.sessions.Validate(cookie.Value)
}

// RequireAuth rejects requests without a valid credential with 401. A
// subject already attached by OptionalAuth is reused.
func RequireAuth(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := SubjectFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			sub, err := a.Subject(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthenticated","message":"valid authentication required"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), sub)))
		})
	}
}

// OptionalAuth attaches the subject when a valid credential is present. An
// absent or invalid credential leaves the request anonymous.
func OptionalAuth(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sub, err := a.Subject(r); err == nil && sub != "" {
				r = r.WithContext(WithSubject(r.Context(), sub))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithSubject returns a copy of ctx carrying the caller's externalId.
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subjectKey, sub)
}

// SubjectFromContext returns the caller's externalId, or ("", false) for
// anonymous requests.
func SubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey).(string)
	return sub, ok && sub != ""
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
