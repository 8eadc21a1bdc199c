package payments

import (
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/craiverse/credits-service/internal/models"
)

// StripeVerifier Stripe-Signature header'ını paylaşılan secret ile doğrular
type StripeVerifier struct {
	secret    string
	tolerance time.Duration
}

// NewStripeVerifier yeni verifier oluşturur
func NewStripeVerifier(secret string) *StripeVerifier {
	return &StripeVerifier{secret: secret, tolerance: webhook.DefaultTolerance}
}

// Verify imzayı doğrular ve event'i parse eder. Her hata
// models.ErrSignatureVerification ile sarılır.
func (v *StripeVerifier) Verify(payload []byte, signatureHeader string) (stripe.Event, error) {
	if v.secret == "" {
		return stripe.Event{}, fmt.Errorf("%w: stripe webhook secret not configured", models.ErrSignatureVerification)
	}
	if signatureHeader == "" {
		return stripe.Event{}, fmt.Errorf("%w: missing Stripe-Signature header", models.ErrSignatureVerification)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", models.ErrSignatureVerification, err)
	}
	return event, nil
}
