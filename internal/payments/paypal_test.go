package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craiverse/credits-service/internal/breaker"
	"github.com/craiverse/credits-service/internal/models"
)

// fakePayPal oauth2 ve verify endpoint'lerini taklit eder
type fakePayPal struct {
	verifyStatus int
	verdict      string
	tokenCalls   atomic.Int32
	verifyCalls  atomic.Int32
	lastVerify   verifyRequest
}

func (f *fakePayPal) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"A21AA-token","expires_in":32400}`))
	})
	mux.HandleFunc("/v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, r *http.Request) {
		f.verifyCalls.Add(1)
		assert.Equal(t, "Bearer A21AA-token", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&f.lastVerify)
		if f.verifyStatus != 0 && f.verifyStatus != http.StatusOK {
			w.WriteHeader(f.verifyStatus)
			_, _ = w.Write([]byte(`{"name":"INVALID_REQUEST"}`))
			return
		}
		_, _ = w.Write([]byte(`{"verification_status":"` + f.verdict + `"}`))
	})
	return mux
}

func newTestPayPalClient(t *testing.T, fake *fakePayPal) (*PayPalClient, *breaker.Registry) {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	breakers := breaker.NewRegistry(nil)
	client := NewPayPalClient(PayPalConfig{
		BaseURL:      server.URL + "/",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		WebhookID:    "WH-CONFIG-1",
		MaxRetries:   1,
	}, breakers)
	return client, breakers
}

func signedHeaders() http.Header {
	h := http.Header{}
	h.Set("Paypal-Auth-Algo", "SHA256withRSA")
	h.Set("Paypal-Cert-Url", "https://api.paypal.com/v1/notifications/certs/CERT-1")
	h.Set("Paypal-Transmission-Id", "tx-1")
	h.Set("Paypal-Transmission-Sig", "c2lnbmF0dXJl")
	h.Set("Paypal-Transmission-Time", "2026-10-15T10:00:00Z")
	return h
}

const paypalPayload = `{"id":"WH-EVT-1","event_type":"PAYMENT.CAPTURE.COMPLETED"}`

// TestPayPalClient_VerifyWebhook_Success, SUCCESS cevabında hatasız döndüğünü test eder.
func TestPayPalClient_VerifyWebhook_Success(t *testing.T) {
	// Arrange
	fake := &fakePayPal{verdict: "SUCCESS"}
	client, breakers := newTestPayPalClient(t, fake)

	// Act
	err := client.VerifyWebhook(context.Background(), signedHeaders(), []byte(paypalPayload))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "WH-CONFIG-1", fake.lastVerify.WebhookID)
	assert.Equal(t, "tx-1", fake.lastVerify.TransmissionID)
	assert.JSONEq(t, paypalPayload, string(fake.lastVerify.WebhookEvent))
	assert.Equal(t, breaker.StateClosed, breakers.State(PayPalService))
}

// TestPayPalClient_VerifyWebhook_Failure, FAILURE cevabının imza hatasına çevrildiğini test eder.
func TestPayPalClient_VerifyWebhook_Failure(t *testing.T) {
	// Arrange
	client, _ := newTestPayPalClient(t, &fakePayPal{verdict: "FAILURE"})

	// Act
	err := client.VerifyWebhook(context.Background(), signedHeaders(), []byte(paypalPayload))

	// Assert
	assert.ErrorIs(t, err, models.ErrSignatureVerification)
}

// TestPayPalClient_VerifyWebhook_Rejected, PayPal'a gitmeden reddedilen istekleri test eder.
func TestPayPalClient_VerifyWebhook_Rejected(t *testing.T) {
	missing := signedHeaders()
	missing.Del("Paypal-Transmission-Sig")

	tests := []struct {
		name    string
		headers http.Header
		payload string
	}{
		{"missing signature header", missing, paypalPayload},
		{"payload not json", signedHeaders(), `{"id":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakePayPal{verdict: "SUCCESS"}
			client, _ := newTestPayPalClient(t, fake)

			err := client.VerifyWebhook(context.Background(), tt.headers, []byte(tt.payload))

			assert.ErrorIs(t, err, models.ErrSignatureVerification)
			assert.Zero(t, fake.verifyCalls.Load())
		})
	}
}

// TestPayPalClient_VerifyWebhook_ClientErrorIsPermanent, 400 yanıtının tekrar denenmediğini
// ve breaker'ı açmadığını test eder.
func TestPayPalClient_VerifyWebhook_ClientErrorIsPermanent(t *testing.T) {
	// Arrange
	fake := &fakePayPal{verifyStatus: http.StatusBadRequest}
	client, breakers := newTestPayPalClient(t, fake)

	// Act
	err := client.VerifyWebhook(context.Background(), signedHeaders(), []byte(paypalPayload))

	// Assert
	assert.ErrorIs(t, err, models.ErrSignatureVerification)
	assert.Equal(t, int32(1), fake.verifyCalls.Load())
	assert.Zero(t, breakers.Failures(PayPalService))
}

// TestPayPalClient_VerifyWebhook_ServerErrorCountsFailure, 5xx yanıtının breaker'a hata yazdığını test eder.
func TestPayPalClient_VerifyWebhook_ServerErrorCountsFailure(t *testing.T) {
	// Arrange
	client, breakers := newTestPayPalClient(t, &fakePayPal{verifyStatus: http.StatusBadGateway})

	// Act
	err := client.VerifyWebhook(context.Background(), signedHeaders(), []byte(paypalPayload))

	// Assert
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrSignatureVerification)
	assert.Equal(t, uint32(1), breakers.Failures(PayPalService))
}

// TestPayPalClient_TokenIsCached, access token'ın istekler arasında tekrar kullanıldığını test eder.
func TestPayPalClient_TokenIsCached(t *testing.T) {
	// Arrange
	fake := &fakePayPal{verdict: "SUCCESS"}
	client, _ := newTestPayPalClient(t, fake)

	// Act
	for i := 0; i < 3; i++ {
		require.NoError(t, client.VerifyWebhook(context.Background(), signedHeaders(), []byte(paypalPayload)))
	}

	// Assert
	assert.Equal(t, int32(1), fake.tokenCalls.Load())
	assert.Equal(t, int32(3), fake.verifyCalls.Load())
}
