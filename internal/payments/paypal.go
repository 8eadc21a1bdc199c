package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/craiverse/credits-service/internal/breaker"
	"github.com/craiverse/credits-service/internal/models"
)

// PayPalService breaker'daki servis adı
const PayPalService = "paypal"

// PayPal doğrulama header'ları
var paypalHeaders = []string{
	"Paypal-Auth-Algo",
	"Paypal-Cert-Url",
	"Paypal-Transmission-Id",
	"Paypal-Transmission-Sig",
	"Paypal-Transmission-Time",
}

// PayPalConfig PayPal REST ayarları
type PayPalConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	WebhookID    string
	Timeout      time.Duration
	MaxRetries   int
}

// PayPalClient webhook imzalarını PayPal'ın doğrulama endpoint'i üzerinden kontrol eder.
// Tüm çağrılar "paypal" breaker'ı arkasından yapılır.
type PayPalClient struct {
	config   PayPalConfig
	http     *http.Client
	breakers *breaker.Registry
	now      func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewPayPalClient yeni client oluşturur
func NewPayPalClient(config PayPalConfig, breakers *breaker.Registry) *PayPalClient {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &PayPalClient{
		config:   config,
		http:     &http.Client{Timeout: config.Timeout},
		breakers: breakers,
		now:      time.Now,
	}
}

type verifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// statusError PayPal'dan dönen 2xx dışı yanıt
type statusError struct {
	op     string
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("paypal %s: unexpected status %d: %s", e.op, e.status, e.body)
}

// VerifyWebhook header'ları ve gövdeyi PayPal'a doğrulatır. Doğrulanamayan
// istekler models.ErrSignatureVerification, açık devre models.ErrCircuitOpen döner.
func (c *PayPalClient) VerifyWebhook(ctx context.Context, headers http.Header, payload []byte) error {
	for _, h := range paypalHeaders {
		if headers.Get(h) == "" {
			return fmt.Errorf("%w: missing %s header", models.ErrSignatureVerification, strings.ToLower(h))
		}
	}
	if c.config.WebhookID == "" {
		return fmt.Errorf("%w: paypal webhook id not configured", models.ErrSignatureVerification)
	}
	if !json.Valid(payload) {
		return fmt.Errorf("%w: payload is not valid JSON", models.ErrSignatureVerification)
	}

	body, err := json.Marshal(verifyRequest{
		AuthAlgo:         headers.Get("Paypal-Auth-Algo"),
		CertURL:          headers.Get("Paypal-Cert-Url"),
		TransmissionID:   headers.Get("Paypal-Transmission-Id"),
		TransmissionSig:  headers.Get("Paypal-Transmission-Sig"),
		TransmissionTime: headers.Get("Paypal-Transmission-Time"),
		WebhookID:        c.config.WebhookID,
		WebhookEvent:     payload,
	})
	if err != nil {
		return fmt.Errorf("paypal verify isteği hazırlanamadı: %w", err)
	}

	var status string
	err = c.breakers.WithRetry(ctx, PayPalService, c.config.MaxRetries, func(ctx context.Context) error {
		s, err := c.postVerify(ctx, body)
		if err != nil {
			return classify(err)
		}
		status = s
		return nil
	})
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.status >= 400 && se.status < 500 && se.status != http.StatusUnauthorized {
			return fmt.Errorf("%w: %v", models.ErrSignatureVerification, err)
		}
		return err
	}

	if status != "SUCCESS" {
		log.Warn().
			Str("transmission_id", headers.Get("Paypal-Transmission-Id")).
			Str("verification_status", status).
			Msg("🚫 PayPal webhook imzası doğrulanamadı")
		return fmt.Errorf("%w: verification status %s", models.ErrSignatureVerification, status)
	}
	return nil
}

// classify 4xx yanıtları (401 hariç) kalıcı hata olarak işaretler
func classify(err error) error {
	var se *statusError
	if errors.As(err, &se) && se.status >= 400 && se.status < 500 && se.status != http.StatusUnauthorized {
		return breaker.Permanent(err)
	}
	return err
}

func (c *PayPalClient) postVerify(ctx context.Context, body []byte) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/notifications/verify-webhook-signature", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal verify isteği başarısız: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
	}
	if resp.StatusCode != http.StatusOK {
		return "", newStatusError("verify", resp)
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("paypal verify yanıtı okunamadı: %w", err)
	}
	return out.VerificationStatus, nil
}

// accessToken client credentials token'ını cache'ten veya PayPal'dan alır
func (c *PayPalClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.config.ClientID, c.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token isteği başarısız: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newStatusError("oauth2/token", resp)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("paypal token yanıtı okunamadı: %w", err)
	}
	if tr.AccessToken == "" {
		return "", errors.New("paypal token yanıtında access_token yok")
	}

	// süre dolmadan bir dakika önce yenile
	ttl := time.Duration(tr.ExpiresIn)*time.Second - time.Minute
	if ttl < 0 {
		ttl = 0
	}
	c.token = tr.AccessToken
	c.tokenExpiry = c.now().Add(ttl)
	return c.token, nil
}

func (c *PayPalClient) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func newStatusError(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &statusError{op: op, status: resp.StatusCode, body: strings.TrimSpace(string(snippet))}
}
