package interfaces

import (
	"context"
	"net/http"

	"github.com/craiverse/credits-service/internal/models"
)

// LedgerServiceInterface kredi ledger business logic için interface
type LedgerServiceInterface interface {
	// Check bakiyenin amount için yeterli olup olmadığını söyler, mutasyon yapmaz
	Check(ctx context.Context, userID string, amount int64) (*models.CreditCheck, error)

	// Deduct kullanım için kredi düşer
	Deduct(ctx context.Context, req *models.DeductRequest) (*models.LedgerResult, error)

	// Add satın alma/yenileme kredisi ekler ve bildirim kuyruğa atar
	Add(ctx context.Context, req *models.AddRequest) (*models.LedgerResult, error)

	// Refund operation_id başına en fazla bir kez iade yapar
	Refund(ctx context.Context, req *models.RefundRequest) (*models.LedgerResult, error)

	// GetAccount hesap özetini getirir
	GetAccount(ctx context.Context, userID string) (*models.CreditAccount, error)

	// ListTransactions ledger geçmişini getirir
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error)
}

// IdempotencyServiceInterface idempotency store business logic için interface
type IdempotencyServiceInterface interface {
	// Check kayıt yoksa Exists=false, hash eşleşirse cache'lenmiş yanıtı döner.
	// Hash farklıysa models.ErrIdempotencyKeyReused.
	Check(ctx context.Context, key, operationType, requestHash string) (*models.IdempotencyResult, error)

	// Store status < 500 ise yanıtı TTL boyunca saklar
	Store(ctx context.Context, key, operationType, requestHash string, status int, body []byte) error
}

// RateLimiterInterface sliding window rate limiter
type RateLimiterInterface interface {
	CheckRateLimit(ctx context.Context, identifier, category string) (*models.RateLimitResult, error)
}

// WebhookServiceInterface provider event'lerini ledger/abonelik mutasyonlarına çevirir
type WebhookServiceInterface interface {
	// HandleStripe imzayı doğrular ve event'i işler
	HandleStripe(ctx context.Context, payload []byte, signatureHeader string) (string, error)

	// HandlePayPal imzayı PayPal üzerinden doğrular ve event'i işler
	HandlePayPal(ctx context.Context, payload []byte, headers http.Header) (string, error)
}

// Notifier bildirimleri arka planda yazar
type Notifier interface {
	// Enqueue kuyruk doluysa false döner
	Enqueue(n *models.Notification) bool
}
