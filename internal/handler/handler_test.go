package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/hypeshelf/internal/auth"
	"github.com/sakif/hypeshelf/internal/model"
	"github.com/sakif/hypeshelf/internal/repository/sqlite"
	"github.com/sakif/hypeshelf/internal/service"
	"github.com/sakif/hypeshelf/internal/webhook"
)

const (
	testSessionSecret = "test-secret-at-least-16-chars!!"
	testWebhookSecret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"
)

// testEnv is a router wired to real services over an in-memory SQLite.
type testEnv struct {
	db       *sqlite.DB
	tokens   *auth.TokenService
	identity *service.IdentityService
	router   http.Handler
}

func newTestEnv(t *testing.T, provider LoginProvider) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService(testSessionSecret, time.Hour)
	require.NoError(t, err)
	verifier, err := webhook.NewVerifier(testWebhookSecret)
	require.NoError(t, err)

	identity := service.NewIdentityService(db, logger)
	recs := NewRecommendationHandler(service.NewRecommendationService(db, db, logger), logger)
	authH := NewAuthHandler(provider, service.NewAuthService(tokens, identity, logger), identity, false, logger)
	hooks := NewWebhookHandler(verifier, webhook.NewReplayGuard(nil, 0), identity, logger)
	health := NewHealthHandler(db, logger)

	authn := auth.NewAuthenticator(tokens, nil)
	r := chi.NewRouter()
	r.Get("/healthz", health.HandleHealth)
	r.Post("/webhooks/identity", hooks.HandleIdentityEvent)
	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", authH.HandleLogin)
		r.Get("/callback", authH.HandleCallback)
		r.Post("/logout", authH.HandleLogout)
	})
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.OptionalAuth(authn))
		r.Get("/me", authH.HandleMe)
		r.Get("/recommendations", recs.HandleList)
		r.Get("/recommendations/mine", recs.HandleListMine)
		r.Post("/recommendations", recs.HandleCreate)
		r.Delete("/recommendations/{id}", recs.HandleDelete)
		r.Post("/recommendations/{id}/staff-pick", recs.HandleStaffPick)
	})

	return &testEnv{db: db, tokens: tokens, identity: identity, router: r}
}

// syncUser creates a user the way identity sync does, optionally as admin.
func (e *testEnv) syncUser(t *testing.T, externalID, name string, role model.Role) *model.User {
	t.Helper()
	u, err := e.identity.Upsert(context.Background(), model.Profile{
		ExternalID:  externalID,
		Email:       externalID + "@example.com",
		DisplayName: name,
	})
	require.NoError(t, err)
	if role == model.RoleAdmin {
		require.NoError(t, e.db.SetRole(context.Background(), u.ID, model.RoleAdmin))
	}
	return u
}

// do sends a request as subject ("" for anonymous) with an optional JSON
// body.
func (e *testEnv) do(t *testing.T, method, path, subject string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if subject != "" {
		token, err := e.tokens.Generate(subject)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: token})
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}
