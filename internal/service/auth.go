package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/hypeshelf/internal/auth"
	"github.com/sakif/hypeshelf/internal/model"
)

// AuthService turns a verified provider identity into a session.
//
//	AuthHandler (HTTP) → AuthService → TokenService (JWT)
//	                                 ↘ IdentityService (current user)
//
// It never creates users: a first login before the provider's user.created
// event arrives yields a session whose User is nil.
type AuthService struct {
	tokens   *auth.TokenService
	identity *IdentityService
	logger   *slog.Logger
}

func NewAuthService(tokens *auth.TokenService, identity *IdentityService, logger *slog.Logger) *AuthService {
	return &AuthService{tokens: tokens, identity: identity, logger: logger}
}

// Session bundles the issued token with the user it resolves to, so the
// handler can set the cookie and respond in one step.
type Session struct {
	ExternalID string
	Token      string
	ExpiresAt  time.Time
	User       *model.User // nil until identity sync has created the user
}

// StartSession issues a session token for a verified identity.
func (s *AuthService) StartSession(ctx context.Context, claims *auth.IdentityClaims) (*Session, error) {
	if claims == nil || claims.Subject == "" {
		return nil, errors.New("service/auth: verified identity must have a subject")
	}

	token, err := s.tokens.Generate(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for %s: %w", claims.Subject, err)
	}

	user, err := s.identity.CurrentUser(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	s.logger.Info("session started",
		slog.String("externalID", claims.Subject),
		slog.Bool("synced", user != nil),
	)

	return &Session{
		ExternalID: claims.Subject,
		Token:      token,
		ExpiresAt:  time.Now().Add(s.tokens.TTL()),
		User:       user,
	}, nil
}

// ValidateToken returns the externalId a session token was issued for.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	sub, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return sub, nil
}
