package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craiverse/credits-service/internal/interfaces"
	"github.com/craiverse/credits-service/internal/models"
)

var _ interfaces.CreditRepositoryInterface = (*CreditRepository)(nil)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// TestCreditRepository_GetAccount_NotFound, hesabı olmayan kullanıcı için sıfır bakiye döndüğünü test eder.
func TestCreditRepository_GetAccount_NotFound(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewCreditRepository(db)

	mock.ExpectQuery("FROM credit_accounts").
		WithArgs("user-1").
		WillReturnError(sql.ErrNoRows)

	// Act
	acc, err := repo.GetAccount(context.Background(), "user-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "user-1", acc.UserID)
	assert.Equal(t, int64(0), acc.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreditRepository_GetAccount_Success, mevcut hesabın okunduğunu test eder.
func TestCreditRepository_GetAccount_Success(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewCreditRepository(db)
	now := time.Now()

	mock.ExpectQuery("FROM credit_accounts").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"user_id", "balance", "bonus_balance", "lifetime_earned", "lifetime_spent", "created_at", "updated_at",
		}).AddRow("user-1", 150, 10, 400, 250, now, now))

	// Act
	acc, err := repo.GetAccount(context.Background(), "user-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(150), acc.Balance)
	assert.Equal(t, int64(10), acc.BonusBalance)
	assert.Equal(t, int64(400), acc.LifetimeEarned)
	assert.Equal(t, int64(250), acc.LifetimeSpent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreditRepository_Deduct_Success, koşullu update ve ledger satırının aynı transaction'da yazıldığını test eder.
func TestCreditRepository_Deduct_Success(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewCreditRepository(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE credit_accounts").
		WithArgs("user-1", int64(30)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(70))
	mock.ExpectQuery("INSERT INTO credit_transactions").
		WithArgs("user-1", int64(-30), int64(70), models.TxTypeDeduction, "javari", "deduct", "op-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, now))
	mock.ExpectCommit()

	// Act
	result, err := repo.Deduct(context.Background(), &models.DeductRequest{
		UserID: "user-1", Amount: 30, AppID: "javari", OperationID: "op-1",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(70), result.NewBalance)
	assert.Equal(t, int64(11), result.Transaction.ID)
	assert.Equal(t, int64(-30), result.Transaction.Amount)
	assert.Equal(t, int64(70), result.Transaction.BalanceAfter)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreditRepository_Deduct_Insufficient, yetersiz bakiyede hiçbir şey yazılmadan rollback yapıldığını test eder.
func TestCreditRepository_Deduct_Insufficient(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewCreditRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE credit_accounts").
		WithArgs("user-1", int64(50)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))
	mock.ExpectQuery("SELECT balance FROM credit_accounts").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(30))
	mock.ExpectRollback()

	// Act
	result, err := repo.Deduct(context.Background(), &models.DeductRequest{UserID: "user-1", Amount: 50})

	// Assert
	assert.Nil(t, result)
	var insufficient *models.InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(30), insufficient.Balance)
	assert.Equal(t, int64(50), insufficient.Required)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreditRepository_Deduct_NoAccount, hesabı olmayan kullanıcı için bakiye sıfır raporlandığını test eder.
func TestCreditRepository_Deduct_NoAccount(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewCreditRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE credit_accounts").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))
	mock.ExpectQuery("SELECT balance FROM credit_accounts").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))
	mock.ExpectRollback()

	// Act
	_, err := repo.Deduct(context.Background(), &models.DeductRequest{UserID: "ghost", Amount: 1})

	// Assert
	var insufficient *models.InsufficientCreditsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(0), insufficient.Balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreditRepository_Add_CreatesAccount, ilk eklemede purchase satırı yazıldığını test eder.
func TestCreditRepository_Add_CreatesAccount(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewCreditRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO credit_accounts").
		WithArgs("user-1", int64(100), int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(100))
	mock.ExpectQuery("INSERT INTO credit_transactions").
		WithArgs("user-1", int64(100), int64(100), models.TxTypePurchase, "api", "add", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))
	mock.ExpectCommit()

	// Act
	result, err := repo.Add(context.Background(), &models.AddRequest{UserID: "user-1", Amount: 100, Source: "api"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(100), result.NewBalance)
	assert.Equal(t, models.TxTypePurchase, result.Transaction.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreditRepository_Add_DuplicateReference, unique index ihlalinin ErrDuplicateGrant'e çevrildiğini test eder.
func TestCreditRepository_Add_DuplicateReference(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewCreditRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO credit_accounts").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(5500))
	mock.ExpectQuery("INSERT INTO credit_transactions").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_credit_transactions_type_operation"})
	mock.ExpectRollback()

	// Act
	result, err := repo.Add(context.Background(), &models.AddRequest{
		UserID: "user-1", Amount: 5000, ReferenceID: "stripe:in_1", Type: models.TxTypeRenewal,
	})

	// Assert
	assert.Nil(t, result)
	assert.ErrorIs(t, err, models.ErrDuplicateGrant)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreditRepository_Refund_Success, iadenin bakiyeye eklendiğini ve lifetime_earned'ü artırmadığını test eder.
func TestCreditRepository_Refund_Success(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewCreditRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("op-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO credit_accounts").
		WithArgs("user-1", int64(20), 0).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(90))
	mock.ExpectQuery("INSERT INTO credit_transactions").
		WithArgs("user-1", int64(20), int64(90), models.TxTypeRefund, sqlmock.AnyArg(), "refund", "op-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, time.Now()))
	mock.ExpectCommit()

	// Act
	result, err := repo.Refund(context.Background(), &models.RefundRequest{UserID: "user-1", Amount: 20, OperationID: "op-1"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(90), result.NewBalance)
	assert.Equal(t, models.TxTypeRefund, result.Transaction.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreditRepository_Refund_AlreadyRefunded, ikinci iadenin bakiyeye dokunmadan reddedildiğini test eder.
func TestCreditRepository_Refund_AlreadyRefunded(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewCreditRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("op-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	// Act
	_, err := repo.Refund(context.Background(), &models.RefundRequest{UserID: "user-1", Amount: 20, OperationID: "op-1"})

	// Assert
	assert.ErrorIs(t, err, models.ErrAlreadyRefunded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreditRepository_Refund_ConcurrentDuplicate, yarışı kaybeden iadenin unique index ile yakalandığını test eder.
func TestCreditRepository_Refund_ConcurrentDuplicate(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewCreditRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO credit_accounts").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(90))
	mock.ExpectQuery("INSERT INTO credit_transactions").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	// Act
	_, err := repo.Refund(context.Background(), &models.RefundRequest{UserID: "user-1", Amount: 20, OperationID: "op-1"})

	// Assert
	assert.ErrorIs(t, err, models.ErrAlreadyRefunded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreditRepository_ListTransactions, ledger satırlarının sırayla okunduğunu test eder.
func TestCreditRepository_ListTransactions(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewCreditRepository(db)
	now := time.Now()

	mock.ExpectQuery("FROM credit_transactions").
		WithArgs("user-1", 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "amount", "balance_after", "type",
			"source_app", "source_action", "operation_id", "reason", "created_at",
		}).
			AddRow(2, "user-1", -30, 70, models.TxTypeDeduction, "javari", "deduct", "op-1", "", now).
			AddRow(1, "user-1", 100, 100, models.TxTypePurchase, "api", "add", "", "", now.Add(-time.Minute)))

	// Act
	txs, err := repo.ListTransactions(context.Background(), "user-1", 20, 0)

	// Assert
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(2), txs[0].ID)
	assert.Equal(t, "javari", txs[0].SourceApp)
	assert.Equal(t, models.TxTypePurchase, txs[1].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreditRepository_ListTransactions_QueryError, sorgu hatasının sarıldığını test eder.
func TestCreditRepository_ListTransactions_QueryError(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewCreditRepository(db)
	dbErr := errors.New("relation does not exist")

	mock.ExpectQuery("FROM credit_transactions").WillReturnError(dbErr)

	// Act
	_, err := repo.ListTransactions(context.Background(), "user-1", 20, 0)

	// Assert
	assert.ErrorIs(t, err, dbErr)
}
