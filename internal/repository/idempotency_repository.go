package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/craiverse/credits-service/internal/models"
)

// IdempotencyRepository idempotency_records tablosu
type IdempotencyRepository struct {
	db *sql.DB
}

// NewIdempotencyRepository yeni repository oluşturur
func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Get süresi dolmamış kaydı getirir, yoksa nil döner
func (r *IdempotencyRepository) Get(ctx context.Context, key, operationType string, now time.Time) (*models.IdempotencyRecord, error) {
	query := `
		SELECT idempotency_key, operation_type, request_hash, response_status, response_body, created_at, expires_at
		FROM idempotency_records
		WHERE idempotency_key = $1 AND operation_type = $2 AND expires_at > $3
	`

	var rec models.IdempotencyRecord
	err := r.db.QueryRowContext(ctx, query, key, operationType, now).Scan(
		&rec.Key,
		&rec.OperationType,
		&rec.RequestHash,
		&rec.ResponseStatus,
		&rec.ResponseBody,
		&rec.CreatedAt,
		&rec.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("idempotency kaydı okunamadı: %w", err)
	}
	return &rec, nil
}

// Insert kaydı yazar. Aynı key+operation için canlı bir kayıt varsa olduğu gibi
// kalır; yalnızca süresi dolmuş kaydın üzerine yazılır.
func (r *IdempotencyRepository) Insert(ctx context.Context, rec *models.IdempotencyRecord) error {
	query := `
		INSERT INTO idempotency_records
			(idempotency_key, operation_type, request_hash, response_status, response_body, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (idempotency_key, operation_type) DO UPDATE
		SET request_hash = EXCLUDED.request_hash,
		    response_status = EXCLUDED.response_status,
		    response_body = EXCLUDED.response_body,
		    created_at = EXCLUDED.created_at,
		    expires_at = EXCLUDED.expires_at
		WHERE idempotency_records.expires_at <= EXCLUDED.created_at
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.Key,
		rec.OperationType,
		rec.RequestHash,
		rec.ResponseStatus,
		rec.ResponseBody,
		rec.CreatedAt,
		rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("idempotency kaydı yazılamadı: %w", err)
	}
	return nil
}

// DeleteExpired süresi dolan kayıtları siler
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM idempotency_records WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("süresi dolan idempotency kayıtları silinemedi: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
