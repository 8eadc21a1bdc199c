// Package sqlite tek node kurulumlar için rate limit log deposu.
// Zaman damgaları unix milisaniye olarak saklanır.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS rate_limit_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	identifier TEXT NOT NULL,
	category TEXT NOT NULL,
	created_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rate_limit_lookup
	ON rate_limit_entries (identifier, category, created_at_ms);
`

// RateLimitStore SQLite üzerinde sliding window log
type RateLimitStore struct {
	db *sql.DB
}

// Open path'teki veritabanını açar ve şemayı hazırlar. ":memory:" testler içindir.
func Open(path string) (*RateLimitStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite dizini oluşturulamadı: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite açılamadı: %w", err)
	}
	// tek writer; :memory: için her bağlantı ayrı veritabanı demek
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite pragma hatası: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite şeması oluşturulamadı: %w", err)
	}

	log.Info().Str("path", path).Msg("✅ SQLite rate limit deposu hazır")
	return &RateLimitStore{db: db}, nil
}

// Close veritabanını kapatır
func (s *RateLimitStore) Close() error {
	return s.db.Close()
}

// CountSince since'den sonraki kayıt sayısı ve en eski kaydın zamanı
func (s *RateLimitStore) CountSince(ctx context.Context, identifier, category string, since time.Time) (int, time.Time, error) {
	var (
		count  int
		oldest sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(created_at_ms) FROM rate_limit_entries
		 WHERE identifier = ? AND category = ? AND created_at_ms > ?`,
		identifier, category, since.UnixMilli(),
	).Scan(&count, &oldest)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("rate limit sayımı yapılamadı: %w", err)
	}
	if !oldest.Valid {
		return count, time.Time{}, nil
	}
	return count, time.UnixMilli(oldest.Int64), nil
}

// Record kabul edilen isteği loglar
func (s *RateLimitStore) Record(ctx context.Context, identifier, category string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rate_limit_entries (identifier, category, created_at_ms) VALUES (?, ?, ?)`,
		identifier, category, at.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("rate limit kaydı yazılamadı: %w", err)
	}
	return nil
}

// DeleteBefore cutoff'tan eski kayıtları siler
func (s *RateLimitStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_entries WHERE created_at_ms < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("eski rate limit kayıtları silinemedi: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
