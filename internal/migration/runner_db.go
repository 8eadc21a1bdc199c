package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// AppliedMigration database'den okunan applied migration bilgisi
type AppliedMigration struct {
	Version    int64
	Name       string
	UpChecksum string
	AppliedAt  time.Time
}

// LoadAppliedMigrations tracking tablosundaki kayıtları okur
func (r *Runner) LoadAppliedMigrations(ctx context.Context) (map[int64]AppliedMigration, error) {
	query := fmt.Sprintf(`SELECT version, name, up_checksum, applied_at FROM %s ORDER BY version ASC`, r.config.TableName)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("applied migration'lar okunamadı: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]AppliedMigration)
	for rows.Next() {
		var a AppliedMigration
		if err := rows.Scan(&a.Version, &a.Name, &a.UpChecksum, &a.AppliedAt); err != nil {
			return nil, fmt.Errorf("applied migration scan hatası: %w", err)
		}
		applied[a.Version] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("applied migration iteration hatası: %w", err)
	}

	return applied, nil
}

// LoadMigrationsWithStatus dosyaları database ile karşılaştırır
func (r *Runner) LoadMigrationsWithStatus(ctx context.Context) ([]Migration, error) {
	migrations, err := r.LoadMigrationsFromDisk()
	if err != nil {
		return nil, err
	}

	applied, err := r.LoadAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	for i := range migrations {
		a, ok := applied[migrations[i].Version]
		if !ok {
			continue
		}
		appliedAt := a.AppliedAt
		migrations[i].Applied = true
		migrations[i].AppliedAt = &appliedAt
		migrations[i].Dirty = a.UpChecksum != migrations[i].UpChecksum
	}

	return migrations, nil
}

// GetStatus migration sisteminin genel durumunu döner
func (r *Runner) GetStatus(ctx context.Context) (*MigrationStatus, error) {
	if err := r.Initialize(ctx); err != nil {
		return nil, err
	}

	migrations, err := r.LoadMigrationsWithStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration status alınamadı: %w", err)
	}

	status := &MigrationStatus{
		Migrations:   migrations,
		TotalCount:   len(migrations),
		SystemHealth: StatusHealthy,
	}

	for _, m := range migrations {
		if !m.Applied {
			status.PendingCount++
			continue
		}
		status.AppliedCount++
		if m.Version > status.CurrentVersion {
			status.CurrentVersion = m.Version
		}
		if m.AppliedAt != nil && (status.LastAppliedAt == nil || m.AppliedAt.After(*status.LastAppliedAt)) {
			status.LastAppliedAt = m.AppliedAt
		}
		if m.Dirty {
			status.ErrorCount++
		}
	}

	switch {
	case status.ErrorCount > 0:
		status.SystemHealth = StatusError
	case status.PendingCount > 0:
		status.SystemHealth = StatusWarning
	}

	return status, nil
}

// RunUp pending migration'ları sırayla, her biri kendi transaction'ında uygular.
// İlk hatada durur.
func (r *Runner) RunUp(ctx context.Context) ([]MigrationResult, error) {
	if err := r.Initialize(ctx); err != nil {
		return nil, err
	}

	migrations, err := r.LoadMigrationsWithStatus(ctx)
	if err != nil {
		return nil, err
	}

	var results []MigrationResult
	for _, m := range migrations {
		if m.Applied {
			if m.Dirty && r.config.ValidateChecksums {
				return results, fmt.Errorf("migration %d uygulandıktan sonra değiştirilmiş", m.Version)
			}
			continue
		}

		result := r.executeMigration(ctx, m)
		results = append(results, result)
		if !result.Success {
			log.Error().
				Int64("version", m.Version).
				Str("error", result.Error).
				Msg("Migration başarısız, durduruluyor")
			return results, fmt.Errorf("migration %d başarısız: %s", m.Version, result.Error)
		}

		if r.config.Verbose {
			log.Info().
				Int64("version", m.Version).
				Str("name", m.Name).
				Dur("duration", result.ExecutionTime).
				Bool("dry_run", r.config.DryRun).
				Msg("✅ Migration uygulandı")
		}
	}

	return results, nil
}

func (r *Runner) executeMigration(ctx context.Context, m Migration) MigrationResult {
	start := time.Now()
	result := MigrationResult{Version: m.Version, Name: m.Name, StartedAt: start}

	if r.config.DryRun {
		result.Success = true
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.TransactionTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		result.Error = fmt.Sprintf("transaction başlatılamadı: %v", err)
		return result
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		result.Error = fmt.Sprintf("SQL execution hatası: %v", err)
		return result
	}

	if err := r.recordMigration(ctx, tx, m, time.Since(start)); err != nil {
		result.Error = fmt.Sprintf("migration kaydı eklenemedi: %v", err)
		return result
	}

	if err := tx.Commit(); err != nil {
		result.Error = fmt.Sprintf("transaction commit hatası: %v", err)
		return result
	}

	result.Success = true
	result.ExecutionTime = time.Since(start)
	return result
}

func (r *Runner) recordMigration(ctx context.Context, tx *sql.Tx, m Migration, executionTime time.Duration) error {
	query := fmt.Sprintf(
		`INSERT INTO %s (version, name, up_checksum, execution_time_ms) VALUES ($1, $2, $3, $4)`,
		r.config.TableName,
	)
	_, err := tx.ExecContext(ctx, query, m.Version, m.Name, m.UpChecksum, executionTime.Milliseconds())
	return err
}
