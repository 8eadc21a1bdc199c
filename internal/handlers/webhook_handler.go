package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/craiverse/credits-service/internal/interfaces"
	"github.com/craiverse/credits-service/internal/middleware/errors"
	"github.com/craiverse/credits-service/internal/models"
)

// Stripe event'leri 512KB'ı geçmez, PayPal için de yeterli
const maxWebhookBodySize = 1 << 20

// WebhookHandler ödeme sağlayıcı webhook'larını karşılar
type WebhookHandler struct {
	webhooks interfaces.WebhookServiceInterface
}

// NewWebhookHandler yeni handler oluşturur
func NewWebhookHandler(webhooks interfaces.WebhookServiceInterface) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

type webhookResponse struct {
	Received bool   `json:"received"`
	Event    string `json:"event,omitempty"`
}

// readPayload imza ham gövde üzerinden hesaplandığı için body olduğu gibi okunur
func readPayload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		errors.Write(w, r, &errors.ValidationError{
			Message:    "Webhook payload too large or unreadable",
			StatusCode: http.StatusRequestEntityTooLarge,
			Field:      "body",
		})
		return nil, false
	}
	return payload, true
}

// Stripe POST /api/webhooks/stripe
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		errors.Write(w, r, fmt.Errorf("%w: missing Stripe-Signature header", models.ErrSignatureVerification))
		return
	}

	payload, ok := readPayload(w, r)
	if !ok {
		return
	}

	eventType, err := h.webhooks.HandleStripe(r.Context(), payload, signature)
	if err != nil {
		errors.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{Received: true, Event: eventType})
}

// PayPal POST /api/webhooks/paypal
func (h *WebhookHandler) PayPal(w http.ResponseWriter, r *http.Request) {
	payload, ok := readPayload(w, r)
	if !ok {
		return
	}

	eventType, err := h.webhooks.HandlePayPal(r.Context(), payload, r.Header)
	if err != nil {
		errors.Write(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{Received: true, Event: eventType})
}
