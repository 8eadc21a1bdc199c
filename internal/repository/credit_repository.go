package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/craiverse/credits-service/internal/db"
	"github.com/craiverse/credits-service/internal/models"
)

// CreditRepository kredi hesapları ve ledger satırları
type CreditRepository struct {
	db *sql.DB
}

// NewCreditRepository yeni repository oluşturur
func NewCreditRepository(db *sql.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

const (
	selectAccountQuery = `
		SELECT user_id, balance, bonus_balance, lifetime_earned, lifetime_spent, created_at, updated_at
		FROM credit_accounts
		WHERE user_id = $1
	`

	// Tek koşullu update: eşzamanlı deduct'lar aynı satırda sıraya girer,
	// bakiye hiçbir commit'te negatife düşmez.
	deductQuery = `
		UPDATE credit_accounts
		SET balance = balance - $2,
		    lifetime_spent = lifetime_spent + $2,
		    updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance
	`

	creditQuery = `
		INSERT INTO credit_accounts (user_id, balance, lifetime_earned)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = credit_accounts.balance + EXCLUDED.balance,
		    lifetime_earned = credit_accounts.lifetime_earned + EXCLUDED.lifetime_earned,
		    updated_at = NOW()
		RETURNING balance
	`

	refundExistsQuery = `
		SELECT EXISTS (
			SELECT 1 FROM credit_transactions
			WHERE type = 'refund' AND operation_id = $1
		)
	`

	insertTransactionQuery = `
		INSERT INTO credit_transactions
			(user_id, amount, balance_after, type, source_app, source_action, operation_id, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	listTransactionsQuery = `
		SELECT id, user_id, amount, balance_after, type,
		       COALESCE(source_app, ''), COALESCE(source_action, ''),
		       COALESCE(operation_id, ''), COALESCE(reason, ''), created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
)

// GetAccount hesabı getirir. Hesap yoksa sıfır bakiye döner, satır oluşturmaz.
func (r *CreditRepository) GetAccount(ctx context.Context, userID string) (*models.CreditAccount, error) {
	var acc models.CreditAccount
	err := r.db.QueryRowContext(ctx, selectAccountQuery, userID).Scan(
		&acc.UserID,
		&acc.Balance,
		&acc.BonusBalance,
		&acc.LifetimeEarned,
		&acc.LifetimeSpent,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.EmptyAccount(userID), nil
		}
		return nil, fmt.Errorf("kredi hesabı okunamadı: %w", err)
	}
	return &acc, nil
}

// Deduct bakiyeyi koşullu olarak düşer ve deduction satırı ekler
func (r *CreditRepository) Deduct(ctx context.Context, req *models.DeductRequest) (*models.LedgerResult, error) {
	var result *models.LedgerResult

	err := db.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		var balance int64
		err := tx.QueryRowContext(ctx, deductQuery, req.UserID, req.Amount).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			current, err := currentBalance(ctx, tx, req.UserID)
			if err != nil {
				return err
			}
			return &models.InsufficientCreditsError{Balance: current, Required: req.Amount}
		}
		if err != nil {
			return fmt.Errorf("bakiye düşülemedi: %w", err)
		}

		row := &models.CreditTransaction{
			UserID:       req.UserID,
			Amount:       -req.Amount,
			BalanceAfter: balance,
			Type:         models.TxTypeDeduction,
			SourceApp:    req.AppID,
			SourceAction: "deduct",
			OperationID:  req.OperationID,
			Reason:       req.Reason,
		}
		if err := insertTransaction(ctx, tx, row); err != nil {
			return err
		}

		result = &models.LedgerResult{Transaction: row, NewBalance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Add hesabı gerekirse oluşturur, bakiye ve lifetime_earned'ü artırır.
// ReferenceID ikinci kez gelirse ErrDuplicateGrant döner.
func (r *CreditRepository) Add(ctx context.Context, req *models.AddRequest) (*models.LedgerResult, error) {
	txType := req.Type
	if txType == "" {
		txType = models.TxTypePurchase
	}

	var result *models.LedgerResult
	err := db.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		var balance int64
		if err := tx.QueryRowContext(ctx, creditQuery, req.UserID, req.Amount, req.Amount).Scan(&balance); err != nil {
			return fmt.Errorf("bakiye artırılamadı: %w", err)
		}

		row := &models.CreditTransaction{
			UserID:       req.UserID,
			Amount:       req.Amount,
			BalanceAfter: balance,
			Type:         txType,
			SourceApp:    req.Source,
			SourceAction: "add",
			OperationID:  req.ReferenceID,
			Reason:       req.Reason,
		}
		if err := insertTransaction(ctx, tx, row); err != nil {
			if isUniqueViolation(err) {
				return models.ErrDuplicateGrant
			}
			return err
		}

		result = &models.LedgerResult{Transaction: row, NewBalance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Refund operation_id başına tek iade yapar. Ön kontrol hızlı yolu kapatır,
// eşzamanlı iki iade unique index'e takılır.
func (r *CreditRepository) Refund(ctx context.Context, req *models.RefundRequest) (*models.LedgerResult, error) {
	var result *models.LedgerResult

	err := db.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, refundExistsQuery, req.OperationID).Scan(&exists); err != nil {
			return fmt.Errorf("iade kontrolü yapılamadı: %w", err)
		}
		if exists {
			return models.ErrAlreadyRefunded
		}

		var balance int64
		if err := tx.QueryRowContext(ctx, creditQuery, req.UserID, req.Amount, 0).Scan(&balance); err != nil {
			return fmt.Errorf("iade bakiyeye eklenemedi: %w", err)
		}

		row := &models.CreditTransaction{
			UserID:       req.UserID,
			Amount:       req.Amount,
			BalanceAfter: balance,
			Type:         models.TxTypeRefund,
			SourceAction: "refund",
			OperationID:  req.OperationID,
			Reason:       req.Reason,
		}
		if err := insertTransaction(ctx, tx, row); err != nil {
			if isUniqueViolation(err) {
				return models.ErrAlreadyRefunded
			}
			return err
		}

		result = &models.LedgerResult{Transaction: row, NewBalance: balance}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListTransactions kullanıcının ledger satırlarını listeler
func (r *CreditRepository) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error) {
	rows, err := r.db.QueryContext(ctx, listTransactionsQuery, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("transaction sorgusu hatası: %w", err)
	}
	defer rows.Close()

	txs := make([]*models.CreditTransaction, 0, limit)
	for rows.Next() {
		var t models.CreditTransaction
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Amount,
			&t.BalanceAfter,
			&t.Type,
			&t.SourceApp,
			&t.SourceAction,
			&t.OperationID,
			&t.Reason,
			&t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("transaction scan hatası: %w", err)
		}
		txs = append(txs, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transaction listesi okunamadı: %w", err)
	}

	return txs, nil
}

func currentBalance(ctx context.Context, q db.Querier, userID string) (int64, error) {
	var balance int64
	err := q.QueryRowContext(ctx, `SELECT balance FROM credit_accounts WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("bakiye okunamadı: %w", err)
	}
	return balance, nil
}

func insertTransaction(ctx context.Context, q db.Querier, t *models.CreditTransaction) error {
	err := q.QueryRowContext(ctx, insertTransactionQuery,
		t.UserID,
		t.Amount,
		t.BalanceAfter,
		t.Type,
		nullString(t.SourceApp),
		nullString(t.SourceAction),
		nullString(t.OperationID),
		nullString(t.Reason),
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("ledger satırı yazılamadı: %w", err)
	}
	return nil
}
