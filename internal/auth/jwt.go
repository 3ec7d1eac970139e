// Package auth establishes who is calling.
//
// A caller is identified by the identity provider's subject ("externalId").
// Two credentials carry it:
//
//   - a provider ID token, sent as "Authorization: Bearer <id_token>" and
//     verified against the provider's published keys (oidc.go)
//   - a session token that this server issues after the OAuth2 login flow,
//     stored in the HttpOnly "token" cookie (this file)
//
// The session token is an HS256 JWT:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Payload: {"iss":"hypeshelf","sub":"<externalId>","exp":...}
//
// Logging in never creates a user. Users appear only through identity sync,
// so a valid token whose subject is not yet synced resolves to no user.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer = "hypeshelf"

	// DefaultSessionTTL is how long an issued session token stays valid.
	DefaultSessionTTL = 12 * time.Hour
)

// TokenService issues and validates session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret. ttl <= 0
// selects DefaultSessionTTL.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the lifetime of tokens from Generate.
func (s *TokenService) TTL() time.Duration { return s.ttl }

type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a session token for externalID.
func (s *TokenService) Generate(externalID string) (string, error) {
	return s.GenerateWithDuration(externalID, s.ttl)
}

// GenerateWithDuration signs a session token that expires after d.
func (s *TokenService) GenerateWithDuration(externalID string, d time.Duration) (string, error) {
	if externalID == "" {
		return "", errors.New("auth: token subject must not be empty")
	}
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   externalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies a session token and returns its subject.
//
// Only HS256 tokens from this issuer with an expiry are accepted; the
// method allow-list blocks "none" and algorithm-confusion tokens.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}
	return c.Subject, nil
}
