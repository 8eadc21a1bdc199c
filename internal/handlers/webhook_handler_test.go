package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/craiverse/credits-service/internal/breaker"
	"github.com/craiverse/credits-service/internal/interfaces"
	"github.com/craiverse/credits-service/internal/models"
)

// MockWebhookService, WebhookServiceInterface için sahte bir yapıdır.
type MockWebhookService struct {
	mock.Mock
}

var _ interfaces.WebhookServiceInterface = (*MockWebhookService)(nil)

func (m *MockWebhookService) HandleStripe(ctx context.Context, payload []byte, signatureHeader string) (string, error) {
	args := m.Called(ctx, payload, signatureHeader)
	return args.String(0), args.Error(1)
}

func (m *MockWebhookService) HandlePayPal(ctx context.Context, payload []byte, headers http.Header) (string, error) {
	args := m.Called(ctx, payload, headers)
	return args.String(0), args.Error(1)
}

// TestWebhookHandler_Stripe, Stripe webhook handler'ının durum kodlarını test eder.
func TestWebhookHandler_Stripe(t *testing.T) {
	tests := []struct {
		name       string
		signature  string
		serviceErr error
		wantStatus int
		wantCalled bool
	}{
		{"processed", "t=1,v1=abc", nil, http.StatusOK, true},
		{"missing signature", "", nil, http.StatusBadRequest, false},
		{"bad signature", "t=1,v1=bad", fmt.Errorf("%w: no valid signature", models.ErrSignatureVerification), http.StatusBadRequest, true},
		{"processing failed", "t=1,v1=abc", errors.New("db down"), http.StatusInternalServerError, true},
		{"subscription pending", "t=1,v1=abc", fmt.Errorf("stripe sub_new: %w", models.ErrSubscriptionPending), http.StatusServiceUnavailable, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockWebhookService)
			svc.On("HandleStripe", mock.Anything, []byte(`{"id":"evt_1"}`), tt.signature).
				Return("checkout.session.completed", tt.serviceErr)
			h := NewWebhookHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
			if tt.signature != "" {
				req.Header.Set("Stripe-Signature", tt.signature)
			}
			rr := httptest.NewRecorder()

			h.Stripe(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantCalled {
				svc.AssertExpectations(t)
			} else {
				svc.AssertNotCalled(t, "HandleStripe", mock.Anything, mock.Anything, mock.Anything)
			}
			if tt.wantStatus == http.StatusOK {
				assert.JSONEq(t, `{"received":true,"event":"checkout.session.completed"}`, rr.Body.String())
			}
		})
	}
}

// TestWebhookHandler_PayPal_CircuitOpen, PayPal breaker açıkken 503 döndüğünü test eder.
func TestWebhookHandler_PayPal_CircuitOpen(t *testing.T) {
	// Arrange
	svc := new(MockWebhookService)
	svc.On("HandlePayPal", mock.Anything, mock.Anything, mock.Anything).
		Return("", fmt.Errorf("paypal: %w", models.ErrCircuitOpen))
	h := NewWebhookHandler(svc)

	// Act
	rr := httptest.NewRecorder()
	h.PayPal(rr, httptest.NewRequest(http.MethodPost, "/api/webhooks/paypal", strings.NewReader(`{"id":"WH-1"}`)))

	// Assert
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

// TestWebhookHandler_PayloadTooLarge, limit aşan gövdenin servise ulaşmadığını test eder.
func TestWebhookHandler_PayloadTooLarge(t *testing.T) {
	// Arrange
	svc := new(MockWebhookService)
	h := NewWebhookHandler(svc)
	big := strings.Repeat("a", maxWebhookBodySize+1)

	// Act
	rr := httptest.NewRecorder()
	h.PayPal(rr, httptest.NewRequest(http.MethodPost, "/api/webhooks/paypal", strings.NewReader(big)))

	// Assert
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	svc.AssertNotCalled(t, "HandlePayPal", mock.Anything, mock.Anything, mock.Anything)
}

// fakePinger sabit ping sonucu döner
type fakePinger struct {
	err error
}

func (p fakePinger) PingContext(context.Context) error { return p.err }

// TestHealthHandler, veritabanı ve breaker durumuna göre sağlık yanıtını test eder.
func TestHealthHandler(t *testing.T) {
	openBreakers := func() *breaker.Registry {
		cfg := breaker.DefaultConfig()
		cfg.FailureThreshold = 1
		r := breaker.NewRegistry(cfg)
		done, err := r.Allow("paypal")
		if err == nil {
			done(false)
		}
		return r
	}

	tests := []struct {
		name       string
		db         Pinger
		breakers   *breaker.Registry
		wantStatus int
		wantBody   string
	}{
		{"healthy", fakePinger{}, breaker.NewRegistry(nil), http.StatusOK, `"status":"ok"`},
		{"database down", fakePinger{err: errors.New("refused")}, nil, http.StatusServiceUnavailable, `"status":"unavailable"`},
		{"breaker open", fakePinger{}, openBreakers(), http.StatusOK, `"status":"degraded"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.db, tt.breakers)
			rr := httptest.NewRecorder()

			h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantBody)
		})
	}
}
