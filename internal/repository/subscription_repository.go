package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/craiverse/credits-service/internal/models"
)

// SubscriptionRepository subscriptions tablosu
type SubscriptionRepository struct {
	db *sql.DB
}

// NewSubscriptionRepository yeni repository oluşturur
func NewSubscriptionRepository(db *sql.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// GetByProviderID provider tarafındaki ID ile aboneliği getirir
func (r *SubscriptionRepository) GetByProviderID(ctx context.Context, provider, providerSubscriptionID string) (*models.Subscription, error) {
	query := `
		SELECT id, provider, provider_subscription_id, user_id, COALESCE(plan_id, ''), status, current_period_end, updated_at
		FROM subscriptions
		WHERE provider = $1 AND provider_subscription_id = $2
	`

	var (
		sub       models.Subscription
		periodEnd sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, provider, providerSubscriptionID).Scan(
		&sub.ID,
		&sub.Provider,
		&sub.ProviderSubscriptionID,
		&sub.UserID,
		&sub.PlanID,
		&sub.Status,
		&periodEnd,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("abonelik okunamadı: %w", err)
	}
	if periodEnd.Valid {
		sub.CurrentPeriodEnd = &periodEnd.Time
	}
	return &sub, nil
}

// Upsert provider ID üzerinden aboneliği yazar. Redelivery aynı satırı günceller.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (provider, provider_subscription_id, user_id, plan_id, status, current_period_end)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider, provider_subscription_id) DO UPDATE
		SET user_id = COALESCE(NULLIF(EXCLUDED.user_id, ''), subscriptions.user_id),
		    plan_id = COALESCE(EXCLUDED.plan_id, subscriptions.plan_id),
		    status = EXCLUDED.status,
		    current_period_end = COALESCE(EXCLUDED.current_period_end, subscriptions.current_period_end),
		    updated_at = NOW()
		RETURNING id, updated_at
	`

	var periodEnd sql.NullTime
	if sub.CurrentPeriodEnd != nil {
		periodEnd = sql.NullTime{Time: *sub.CurrentPeriodEnd, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		sub.Provider,
		sub.ProviderSubscriptionID,
		sub.UserID,
		nullString(sub.PlanID),
		sub.Status,
		periodEnd,
	).Scan(&sub.ID, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("abonelik yazılamadı: %w", err)
	}
	return nil
}
