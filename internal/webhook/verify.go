// Package webhook receives user lifecycle events from the identity provider.
//
// Deliveries are Svix-signed: each request carries svix-id, svix-timestamp
// and svix-signature headers, and the signature covers the raw body.
// Verification must run on the exact bytes received, before any decoding.
package webhook

import (
	"errors"
	"fmt"
	"net/http"

	svix "github.com/svix/svix-webhooks/go"
)

// Svix delivery headers.
const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

var (
	// ErrMissingHeaders means the request is not a Svix delivery at all.
	ErrMissingHeaders = errors.New("webhook: missing svix headers")
	// ErrInvalidSignature means the signature or timestamp did not verify.
	ErrInvalidSignature = errors.New("webhook: invalid signature")
)

// Verifier checks Svix signatures with the endpoint's signing secret.
type Verifier struct {
	wh *svix.Webhook
}

// NewVerifier builds a Verifier from a "whsec_..." signing secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("webhook: signing secret is required")
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("webhook: parsing signing secret: %w", err)
	}
	return &Verifier{wh: wh}, nil
}

// Verify checks payload against the delivery headers.
func (v *Verifier) Verify(payload []byte, headers http.Header) error {
	if headers.Get(HeaderID) == "" || headers.Get(HeaderTimestamp) == "" || headers.Get(HeaderSignature) == "" {
		return ErrMissingHeaders
	}
	if err := v.wh.Verify(payload, headers); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
