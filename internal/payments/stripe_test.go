package payments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/craiverse/credits-service/internal/models"
)

const stripePayload = `{"id":"evt_1","object":"event","type":"checkout.session.completed","api_version":"2023-10-16","data":{"object":{"id":"cs_test_1"}}}`

// TestStripeVerifier_Verify, Stripe imza doğrulamasının senaryolarını test eder.
func TestStripeVerifier_Verify(t *testing.T) {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(stripePayload),
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})
	stale := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(stripePayload),
		Secret:    "whsec_test",
		Timestamp: time.Now().Add(-time.Hour),
	})

	tests := []struct {
		name    string
		secret  string
		payload string
		header  string
		wantErr bool
	}{
		{"valid", "whsec_test", stripePayload, signed.Header, false},
		{"wrong secret", "whsec_other", stripePayload, signed.Header, true},
		{"tampered payload", "whsec_test", stripePayload + " ", signed.Header, true},
		{"stale timestamp", "whsec_test", stripePayload, stale.Header, true},
		{"missing header", "whsec_test", stripePayload, "", true},
		{"secret not configured", "", stripePayload, signed.Header, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := NewStripeVerifier(tt.secret).Verify([]byte(tt.payload), tt.header)

			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrSignatureVerification)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "evt_1", event.ID)
			assert.Equal(t, "checkout.session.completed", string(event.Type))
		})
	}
}
