package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"

	"github.com/craiverse/credits-service/internal/config"
	"github.com/craiverse/credits-service/internal/interfaces"
	"github.com/craiverse/credits-service/internal/metrics"
	"github.com/craiverse/credits-service/internal/models"
)

// Kredi kaynakları
const (
	SourceCreditPack          = "credit_pack"
	SourceSubscriptionRenewal = "subscription_renewal"
)

// StripeEventVerifier Stripe imzasını doğrulayıp event döner
type StripeEventVerifier interface {
	Verify(payload []byte, signatureHeader string) (stripe.Event, error)
}

// PayPalWebhookVerifier PayPal imzasını doğrular
type PayPalWebhookVerifier interface {
	VerifyWebhook(ctx context.Context, headers http.Header, payload []byte) error
}

// WebhookService provider event'lerini ledger ve abonelik mutasyonlarına çevirir.
// Provider'lar teslimatı tekrarlar; her mutasyon provider ID'si üzerinden idempotenttir.
type WebhookService struct {
	ledger   interfaces.LedgerServiceInterface
	subs     interfaces.SubscriptionRepositoryInterface
	notifier interfaces.Notifier
	billing  *config.Billing
	stripe   StripeEventVerifier
	paypal   PayPalWebhookVerifier
}

var _ interfaces.WebhookServiceInterface = (*WebhookService)(nil)

// NewWebhookService yeni service oluşturur
func NewWebhookService(
	ledger interfaces.LedgerServiceInterface,
	subs interfaces.SubscriptionRepositoryInterface,
	notifier interfaces.Notifier,
	billing *config.Billing,
	stripeVerifier StripeEventVerifier,
	paypalVerifier PayPalWebhookVerifier,
) *WebhookService {
	if billing == nil {
		billing = config.DefaultBilling()
	}
	return &WebhookService{
		ledger:   ledger,
		subs:     subs,
		notifier: notifier,
		billing:  billing,
		stripe:   stripeVerifier,
		paypal:   paypalVerifier,
	}
}

// ---- Stripe ----

// HandleStripe imzayı doğrular ve event'i işler. Bilinmeyen event tipleri yok sayılır.
func (s *WebhookService) HandleStripe(ctx context.Context, payload []byte, signatureHeader string) (string, error) {
	if s.stripe == nil {
		return "", fmt.Errorf("%w: stripe not configured", models.ErrSignatureVerification)
	}

	event, err := s.stripe.Verify(payload, signatureHeader)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(models.ProviderStripe, "unknown", "rejected").Inc()
		log.Warn().Err(err).Msg("🚫 Stripe webhook imzası geçersiz")
		return "", err
	}

	eventType := string(event.Type)
	logger := log.With().Str("provider", models.ProviderStripe).Str("event_id", event.ID).Str("event_type", eventType).Logger()

	var raw json.RawMessage
	if event.Data != nil {
		raw = event.Data.Raw
	}

	switch eventType {
	case "checkout.session.completed":
		err = s.stripeCheckoutCompleted(ctx, raw)
	case "customer.subscription.created", "customer.subscription.updated":
		err = s.stripeSubscriptionChanged(ctx, raw, false)
	case "customer.subscription.deleted":
		err = s.stripeSubscriptionChanged(ctx, raw, true)
	case "invoice.paid":
		err = s.stripeInvoicePaid(ctx, raw)
	case "invoice.payment_failed":
		err = s.stripeInvoiceFailed(ctx, raw)
	default:
		metrics.WebhookEvents.WithLabelValues(models.ProviderStripe, eventType, "ignored").Inc()
		logger.Debug().Msg("Stripe event'i işlenmedi")
		return eventType, nil
	}

	return eventType, s.finish(logger, models.ProviderStripe, eventType, err)
}

func (s *WebhookService) stripeCheckoutCompleted(ctx context.Context, raw json.RawMessage) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return fmt.Errorf("checkout session parse edilemedi: %w", err)
	}

	userID := session.Metadata["user_id"]
	if userID == "" {
		userID = session.ClientReferenceID
	}

	if session.Mode == stripe.CheckoutSessionModeSubscription {
		if session.Subscription == nil || session.Subscription.ID == "" {
			return nil
		}
		return s.applySubscription(ctx, models.ProviderStripe, session.Subscription.ID, userID, session.Metadata["plan_id"], models.SubscriptionActive, nil)
	}

	credits, err := s.packCredits(session.Metadata)
	if err != nil {
		return err
	}
	if userID == "" || credits == 0 {
		log.Warn().Str("session_id", session.ID).Msg("Checkout session'da user_id veya kredi bilgisi yok, atlandı")
		return nil
	}

	_, err = s.ledger.Add(ctx, &models.AddRequest{
		UserID:      userID,
		Amount:      credits,
		Source:      SourceCreditPack,
		ReferenceID: "stripe:" + session.ID,
		Reason:      "stripe checkout",
		Type:        models.TxTypePurchase,
	})
	return err
}

func (s *WebhookService) stripeSubscriptionChanged(ctx context.Context, raw json.RawMessage, deleted bool) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return fmt.Errorf("subscription parse edilemedi: %w", err)
	}

	status := stripeStatus(sub.Status)
	if deleted {
		status = models.SubscriptionCanceled
	}
	if status == "" {
		log.Debug().Str("subscription_id", sub.ID).Str("status", string(sub.Status)).Msg("Stripe abonelik durumu eşlenmedi")
		return nil
	}

	var planID string
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		planID = sub.Items.Data[0].Price.ID
	}

	var periodEnd *time.Time
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		periodEnd = &t
	}

	return s.applySubscription(ctx, models.ProviderStripe, sub.ID, sub.Metadata["user_id"], planID, status, periodEnd)
}

func (s *WebhookService) stripeInvoicePaid(ctx context.Context, raw json.RawMessage) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return fmt.Errorf("invoice parse edilemedi: %w", err)
	}
	if inv.Subscription == nil || inv.Subscription.ID == "" {
		// tek seferlik ödeme, checkout.session.completed zaten işler
		return nil
	}

	var linePrice string
	if inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			if line.Price != nil && line.Price.ID != "" {
				linePrice = line.Price.ID
				break
			}
		}
	}

	return s.renew(ctx, models.ProviderStripe, inv.Subscription.ID, linePrice, "stripe:"+inv.ID)
}

func (s *WebhookService) stripeInvoiceFailed(ctx context.Context, raw json.RawMessage) error {
	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return fmt.Errorf("invoice parse edilemedi: %w", err)
	}
	if inv.Subscription == nil || inv.Subscription.ID == "" {
		return nil
	}
	return s.paymentFailed(ctx, models.ProviderStripe, inv.Subscription.ID)
}

func stripeStatus(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return models.SubscriptionActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return models.SubscriptionPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return models.SubscriptionCanceled
	default:
		return ""
	}
}

// ---- PayPal ----

type paypalEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

type paypalResource struct {
	ID                 string `json:"id"`
	CustomID           string `json:"custom_id"`
	PlanID             string `json:"plan_id"`
	BillingAgreementID string `json:"billing_agreement_id"`
	BillingInfo        *struct {
		NextBillingTime *time.Time `json:"next_billing_time"`
	} `json:"billing_info"`
}

// HandlePayPal imzayı PayPal üzerinden doğrular ve event'i işler
func (s *WebhookService) HandlePayPal(ctx context.Context, payload []byte, headers http.Header) (string, error) {
	if s.paypal == nil {
		return "", fmt.Errorf("%w: paypal not configured", models.ErrSignatureVerification)
	}

	if err := s.paypal.VerifyWebhook(ctx, headers, payload); err != nil {
		result := "rejected"
		if errors.Is(err, models.ErrCircuitOpen) {
			result = "unavailable"
		}
		metrics.WebhookEvents.WithLabelValues(models.ProviderPayPal, "unknown", result).Inc()
		log.Warn().Err(err).Msg("🚫 PayPal webhook doğrulanamadı")
		return "", err
	}

	var event paypalEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return "", fmt.Errorf("paypal event parse edilemedi: %w", err)
	}

	var res paypalResource
	if len(event.Resource) > 0 {
		if err := json.Unmarshal(event.Resource, &res); err != nil {
			return event.EventType, fmt.Errorf("paypal resource parse edilemedi: %w", err)
		}
	}

	logger := log.With().Str("provider", models.ProviderPayPal).Str("event_id", event.ID).Str("event_type", event.EventType).Logger()

	var err error
	switch event.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		err = s.paypalCaptureCompleted(ctx, &res)
	case "BILLING.SUBSCRIPTION.ACTIVATED":
		var periodEnd *time.Time
		if res.BillingInfo != nil {
			periodEnd = res.BillingInfo.NextBillingTime
		}
		err = s.applySubscription(ctx, models.ProviderPayPal, res.ID, res.CustomID, res.PlanID, models.SubscriptionActive, periodEnd)
	case "BILLING.SUBSCRIPTION.CANCELLED", "BILLING.SUBSCRIPTION.EXPIRED":
		err = s.applySubscription(ctx, models.ProviderPayPal, res.ID, res.CustomID, res.PlanID, models.SubscriptionCanceled, nil)
	case "BILLING.SUBSCRIPTION.SUSPENDED":
		err = s.applySubscription(ctx, models.ProviderPayPal, res.ID, res.CustomID, res.PlanID, models.SubscriptionPastDue, nil)
	case "BILLING.SUBSCRIPTION.PAYMENT.FAILED":
		err = s.paymentFailed(ctx, models.ProviderPayPal, res.ID)
	case "PAYMENT.SALE.COMPLETED":
		if res.BillingAgreementID == "" {
			logger.Debug().Msg("Abonelik dışı PayPal sale, atlandı")
			break
		}
		err = s.renew(ctx, models.ProviderPayPal, res.BillingAgreementID, "", "paypal:"+res.ID)
	default:
		metrics.WebhookEvents.WithLabelValues(models.ProviderPayPal, event.EventType, "ignored").Inc()
		logger.Debug().Msg("PayPal event'i işlenmedi")
		return event.EventType, nil
	}

	return event.EventType, s.finish(logger, models.ProviderPayPal, event.EventType, err)
}

func (s *WebhookService) paypalCaptureCompleted(ctx context.Context, res *paypalResource) error {
	userID, credits, ok := parseCustomID(res.CustomID)
	if !ok {
		log.Warn().Str("capture_id", res.ID).Str("custom_id", res.CustomID).Msg("PayPal capture custom_id geçersiz, atlandı")
		return nil
	}

	_, err := s.ledger.Add(ctx, &models.AddRequest{
		UserID:      userID,
		Amount:      credits,
		Source:      SourceCreditPack,
		ReferenceID: "paypal:" + res.ID,
		Reason:      "paypal capture",
		Type:        models.TxTypePurchase,
	})
	return err
}

// parseCustomID "userID:credits" formatını çözer
func parseCustomID(customID string) (string, int64, bool) {
	// user ID ':' içerebilir, kredi miktarı son parçadır
	i := strings.LastIndex(customID, ":")
	if i <= 0 {
		return "", 0, false
	}
	userID, raw := customID[:i], customID[i+1:]
	credits, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || !models.ValidAmount(credits) {
		return "", 0, false
	}
	return userID, credits, true
}

// ---- ortak ----

func (s *WebhookService) finish(logger zerolog.Logger, provider, eventType string, err error) error {
	switch {
	case err == nil:
		metrics.WebhookEvents.WithLabelValues(provider, eventType, "processed").Inc()
		logger.Info().Msg("✅ Webhook işlendi")
		return nil
	case errors.Is(err, models.ErrDuplicateGrant):
		metrics.WebhookEvents.WithLabelValues(provider, eventType, "duplicate").Inc()
		logger.Info().Msg("🔁 Webhook tekrar teslim edildi, kredi zaten eklenmiş")
		return nil
	case errors.Is(err, models.ErrSubscriptionPending):
		metrics.WebhookEvents.WithLabelValues(provider, eventType, "pending").Inc()
		logger.Warn().Err(err).Msg("⏳ Webhook ertelendi, provider tekrar gönderecek")
		return err
	default:
		metrics.WebhookEvents.WithLabelValues(provider, eventType, "error").Inc()
		logger.Error().Err(err).Msg("❌ Webhook işlenemedi")
		return err
	}
}

func (s *WebhookService) packCredits(metadata map[string]string) (int64, error) {
	if raw := metadata["credits"]; raw != "" {
		credits, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || !models.ValidAmount(credits) {
			log.Warn().Str("credits", raw).Msg("Checkout metadata'sında geçersiz kredi miktarı")
			return 0, nil
		}
		return credits, nil
	}
	if packID := metadata["pack_id"]; packID != "" {
		if pack, ok := s.billing.PackFor(packID); ok {
			return pack.Credits, nil
		}
		log.Warn().Str("pack_id", packID).Msg("Bilinmeyen kredi paketi")
	}
	return 0, nil
}

// applySubscription abonelik durum makinesini uygular. Geçersiz geçişler loglanıp yok sayılır.
func (s *WebhookService) applySubscription(ctx context.Context, provider, providerSubID, userID, planID, status string, periodEnd *time.Time) error {
	if providerSubID == "" {
		return nil
	}

	from := models.SubscriptionNone
	current, err := s.subs.GetByProviderID(ctx, provider, providerSubID)
	switch {
	case err == nil:
		from = current.Status
		if userID == "" {
			userID = current.UserID
		}
		if planID == "" {
			planID = current.PlanID
		}
	case errors.Is(err, models.ErrSubscriptionNotFound):
	default:
		return err
	}

	if !models.CanTransition(from, status) {
		log.Warn().
			Str("provider", provider).
			Str("subscription_id", providerSubID).
			Str("from", from).
			Str("to", status).
			Msg("Geçersiz abonelik geçişi yok sayıldı")
		return nil
	}
	if userID == "" {
		log.Warn().Str("provider", provider).Str("subscription_id", providerSubID).Msg("Abonelik için user_id bilinmiyor, atlandı")
		return nil
	}

	return s.subs.Upsert(ctx, &models.Subscription{
		Provider:               provider,
		ProviderSubscriptionID: providerSubID,
		UserID:                 userID,
		PlanID:                 planID,
		Status:                 status,
		CurrentPeriodEnd:       periodEnd,
	})
}

// renew ödenen fatura için planın aylık kredisini ekler ve aboneliği aktif yapar
func (s *WebhookService) renew(ctx context.Context, provider, providerSubID, fallbackPlanID, referenceID string) error {
	sub, err := s.subs.GetByProviderID(ctx, provider, providerSubID)
	if err != nil {
		if errors.Is(err, models.ErrSubscriptionNotFound) {
			// abonelik event'i henüz gelmedi; 503 ile provider'ın yeniden göndermesi beklenir
			log.Warn().Str("provider", provider).Str("subscription_id", providerSubID).Msg("⏳ Yenileme için abonelik henüz yok, tekrar teslim beklenecek")
			return fmt.Errorf("%s %s: %w", provider, providerSubID, models.ErrSubscriptionPending)
		}
		return err
	}
	if sub.Status == models.SubscriptionCanceled {
		log.Warn().Str("subscription_id", providerSubID).Msg("İptal edilmiş abonelik için yenileme yok sayıldı")
		return nil
	}

	planID := sub.PlanID
	if planID == "" {
		planID = fallbackPlanID
	}
	plan, ok := s.billing.PlanFor(planID)
	if !ok {
		log.Warn().Str("plan_id", planID).Msg("Bilinmeyen plan, yenileme kredisi eklenmedi")
		return nil
	}

	_, err = s.ledger.Add(ctx, &models.AddRequest{
		UserID:      sub.UserID,
		Amount:      plan.MonthlyCredits,
		Source:      SourceSubscriptionRenewal,
		ReferenceID: referenceID,
		Reason:      plan.Name,
		Type:        models.TxTypeRenewal,
	})
	switch {
	case errors.Is(err, models.ErrDuplicateGrant):
		// kredi önceki teslimde eklendi, durum güncellemesi yine de yapılır
		log.Info().Str("reference_id", referenceID).Msg("🔁 Yenileme kredisi zaten eklenmiş")
	case err != nil:
		return err
	}

	if sub.Status != models.SubscriptionActive {
		return s.applySubscription(ctx, provider, providerSubID, sub.UserID, planID, models.SubscriptionActive, nil)
	}
	return nil
}

// paymentFailed aboneliği past_due yapar ve kullanıcıya bildirim gönderir
func (s *WebhookService) paymentFailed(ctx context.Context, provider, providerSubID string) error {
	sub, err := s.subs.GetByProviderID(ctx, provider, providerSubID)
	if err != nil {
		if errors.Is(err, models.ErrSubscriptionNotFound) {
			return nil
		}
		return err
	}

	if err := s.applySubscription(ctx, provider, providerSubID, sub.UserID, sub.PlanID, models.SubscriptionPastDue, nil); err != nil {
		return err
	}

	if s.notifier != nil && sub.Status != models.SubscriptionCanceled {
		s.notifier.Enqueue(&models.Notification{
			ID:        uuid.NewString(),
			UserID:    sub.UserID,
			Kind:      models.NotificationPaymentFailed,
			Title:     "Payment failed",
			Body:      "We could not process your subscription payment. Please update your payment method.",
			CreatedAt: time.Now().UTC(),
		})
	}
	return nil
}
