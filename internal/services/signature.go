package services

import (
	"fmt"

	"github.com/stripe/stripe-go/v82/webhook"
)

// SignatureHeader carries "t=<unix>,v1=<hex hmac-sha256>" over "<t>.<body>".
const SignatureHeader = "Payment-Signature"

// WebhookVerifier checks provider callbacks against the shared signing
// secret. An empty secret accepts everything, for local development.
type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

func (v *WebhookVerifier) Enabled() bool {
	return v.secret != ""
}

func (v *WebhookVerifier) Verify(payload []byte, header string) error {
	if !v.Enabled() {
		return nil
	}
	if header == "" {
		return fmt.Errorf("%w: missing %s header", ErrInvalidSignature, SignatureHeader)
	}
	if err := webhook.ValidatePayload(payload, header, v.secret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
