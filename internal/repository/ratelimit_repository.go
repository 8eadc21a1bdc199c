package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RateLimitRepository Postgres üzerinde sliding window log
type RateLimitRepository struct {
	db *sql.DB
}

// NewRateLimitRepository yeni repository oluşturur
func NewRateLimitRepository(db *sql.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// CountSince since'den sonraki kayıt sayısı ve en eski kaydın zamanı
func (r *RateLimitRepository) CountSince(ctx context.Context, identifier, category string, since time.Time) (int, time.Time, error) {
	query := `
		SELECT COUNT(*), MIN(created_at)
		FROM rate_limit_entries
		WHERE identifier = $1 AND category = $2 AND created_at > $3
	`

	var (
		count  int
		oldest sql.NullTime
	)
	if err := r.db.QueryRowContext(ctx, query, identifier, category, since).Scan(&count, &oldest); err != nil {
		return 0, time.Time{}, fmt.Errorf("rate limit sayımı yapılamadı: %w", err)
	}
	return count, oldest.Time, nil
}

// Record kabul edilen isteği loglar
func (r *RateLimitRepository) Record(ctx context.Context, identifier, category string, at time.Time) error {
	query := `INSERT INTO rate_limit_entries (identifier, category, created_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, identifier, category, at); err != nil {
		return fmt.Errorf("rate limit kaydı yazılamadı: %w", err)
	}
	return nil
}

// DeleteBefore cutoff'tan eski kayıtları siler
func (r *RateLimitRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rate_limit_entries WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("eski rate limit kayıtları silinemedi: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
