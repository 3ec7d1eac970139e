package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Provider runs the OAuth2 authorization code flow against an OpenID Connect
// provider.
//
//  1. /auth/login redirects to AuthURL(state)
//  2. the provider calls /auth/callback with a code
//  3. Exchange trades the code for tokens server-to-server and verifies the
//     returned id_token
//  4. the handler issues a session token for the verified subject
type Provider struct {
	config   oauth2.Config
	verifier IDTokenVerifier
}

// NewProvider discovers the provider's endpoints and keys from
// issuer/.well-known/openid-configuration.
func NewProvider(ctx context.Context, issuer, clientID, clientSecret, redirectURL string) (*Provider, error) {
	p, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("auth: discovering OIDC provider %s: %w", issuer, err)
	}

	config := oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     p.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	verifier := NewOIDCVerifier(p.Verifier(&oidc.Config{ClientID: clientID}))
	return newProvider(config, verifier), nil
}

func newProvider(config oauth2.Config, verifier IDTokenVerifier) *Provider {
	return &Provider{config: config, verifier: verifier}
}

// Verifier returns the ID token verifier for this provider, used to accept
// Bearer ID tokens on API requests.
func (p *Provider) Verifier() IDTokenVerifier { return p.verifier }

// AuthURL returns the provider URL to send the browser to. state is echoed
// back on the callback and must match the value stored in the state cookie.
func (p *Provider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for a verified identity.
func (p *Provider) Exchange(ctx context.Context, code string) (*IdentityClaims, error) {
	if code == "" {
		return nil, errors.New("auth: missing authorization code")
	}

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("auth: token response has no id_token")
	}

	return p.verifier.Verify(ctx, rawIDToken)
}
