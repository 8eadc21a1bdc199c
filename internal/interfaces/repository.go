package interfaces

import (
	"context"
	"time"

	"github.com/craiverse/credits-service/internal/models"
)

// CreditRepositoryInterface ledger database işlemleri için interface.
// Bakiye değişiklikleri tek koşullu UPDATE ile yapılır, read-modify-write yok.
type CreditRepositoryInterface interface {
	// GetAccount hesabı getirir, hesap yoksa sıfır bakiyeli boş hesap döner
	GetAccount(ctx context.Context, userID string) (*models.CreditAccount, error)

	// Deduct bakiye yeterliyse düşer, değilse *models.InsufficientCreditsError döner
	Deduct(ctx context.Context, req *models.DeductRequest) (*models.LedgerResult, error)

	// Add hesabı gerekirse oluşturur ve bakiyeyi artırır
	Add(ctx context.Context, req *models.AddRequest) (*models.LedgerResult, error)

	// Refund aynı operation_id için ikinci iadede ErrAlreadyRefunded döner
	Refund(ctx context.Context, req *models.RefundRequest) (*models.LedgerResult, error)

	// ListTransactions kullanıcının ledger satırlarını yeniden eskiye listeler
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error)
}

// IdempotencyRepositoryInterface idempotency kayıtları için interface
type IdempotencyRepositoryInterface interface {
	// Get süresi dolmamış kaydı getirir, yoksa nil döner
	Get(ctx context.Context, key, operationType string, now time.Time) (*models.IdempotencyRecord, error)

	// Insert kaydı yazar. Süresi dolmamış bir kayıt varsa dokunmaz.
	Insert(ctx context.Context, rec *models.IdempotencyRecord) error

	// DeleteExpired süresi dolan kayıtları siler
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RateLimitStore sliding window log deposu
type RateLimitStore interface {
	// CountSince since'den sonraki kayıt sayısını ve pencere içindeki en eski kaydı döner
	CountSince(ctx context.Context, identifier, category string, since time.Time) (int, time.Time, error)

	// Record kabul edilen isteği loglar
	Record(ctx context.Context, identifier, category string, at time.Time) error

	// DeleteBefore cutoff'tan eski kayıtları siler
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SubscriptionRepositoryInterface abonelik kayıtları için interface
type SubscriptionRepositoryInterface interface {
	// GetByProviderID bulunamazsa models.ErrSubscriptionNotFound döner
	GetByProviderID(ctx context.Context, provider, providerSubscriptionID string) (*models.Subscription, error)

	// Upsert (provider, provider_subscription_id) üzerinden yazar
	Upsert(ctx context.Context, sub *models.Subscription) error
}

// NotificationRepositoryInterface bildirim kayıtları için interface
type NotificationRepositoryInterface interface {
	Insert(ctx context.Context, n *models.Notification) error
}
