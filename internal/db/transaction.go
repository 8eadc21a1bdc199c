package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Querier *sql.DB ve *sql.Tx'in ortak yüzü
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)

// TransactionFunc database transaction içinde çalışacak fonksiyon tipi
type TransactionFunc func(tx *sql.Tx) error

// WithTransaction database transaction'ı yönetir.
// Hata veya panic durumunda rollback, başarı durumunda commit yapar.
func WithTransaction(ctx context.Context, db *sql.DB, fn TransactionFunc) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transaction başlatılamadı: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				log.Error().Err(rollbackErr).Msg("Rollback hatası (panic)")
			}
			log.Error().Interface("panic", r).Msg("Transaction panic ile rollback yapıldı")
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			log.Error().Err(rollbackErr).Msg("Rollback hatası")
			return fmt.Errorf("transaction hatası: %w (rollback: %v)", err, rollbackErr)
		}
		log.Debug().Err(err).Msg("Transaction rollback yapıldı")
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error().Err(err).Msg("Commit hatası")
		return fmt.Errorf("transaction commit hatası: %w", err)
	}

	return nil
}
