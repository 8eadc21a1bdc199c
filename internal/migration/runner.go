package migration

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/rs/zerolog/log"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Runner migration işlemlerini yöneten ana yapı
type Runner struct {
	db     *sql.DB
	config *MigrationConfig
}

// NewRunner yeni migration runner oluşturur
func NewRunner(db *sql.DB, config *MigrationConfig) (*Runner, error) {
	if config == nil {
		config = DefaultConfig()
	}
	// tablo adı SQL'e gömülüyor
	if !tableNamePattern.MatchString(config.TableName) {
		return nil, fmt.Errorf("geçersiz migration tablo adı: %q", config.TableName)
	}
	return &Runner{db: db, config: config}, nil
}

// Initialize migration tracking tablosunu oluşturur
func (r *Runner) Initialize(ctx context.Context) error {
	createTableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version BIGINT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			up_checksum VARCHAR(64) NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			execution_time_ms BIGINT NOT NULL DEFAULT 0
		)`, r.config.TableName)

	if _, err := r.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("migration tracking tablosu oluşturulamadı: %w", err)
	}

	if r.config.Verbose {
		log.Info().
			Str("table", r.config.TableName).
			Str("path", r.config.MigrationsPath).
			Msg("Migration sistemi initialize edildi")
	}
	return nil
}
