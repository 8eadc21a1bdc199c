package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/craiverse/credits-service/internal/models"
)

// NotificationRepository notifications tablosu
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository yeni repository oluşturur
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert bildirimi yazar
func (r *NotificationRepository) Insert(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, kind, title, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, n.ID, n.UserID, n.Kind, n.Title, n.Body, n.CreatedAt); err != nil {
		return fmt.Errorf("bildirim yazılamadı: %w", err)
	}
	return nil
}
