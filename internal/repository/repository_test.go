package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craiverse/credits-service/internal/interfaces"
	"github.com/craiverse/credits-service/internal/models"
)

var (
	_ interfaces.IdempotencyRepositoryInterface  = (*IdempotencyRepository)(nil)
	_ interfaces.RateLimitStore                  = (*RateLimitRepository)(nil)
	_ interfaces.SubscriptionRepositoryInterface = (*SubscriptionRepository)(nil)
	_ interfaces.NotificationRepositoryInterface = (*NotificationRepository)(nil)
)

// TestIdempotencyRepository_Get_Miss, kayıt yokken nil döndüğünü test eder.
func TestIdempotencyRepository_Get_Miss(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewIdempotencyRepository(db)
	now := time.Now()

	mock.ExpectQuery("FROM idempotency_records").
		WithArgs("key-1", "POST /api/credits", now).
		WillReturnError(sql.ErrNoRows)

	// Act
	rec, err := repo.Get(context.Background(), "key-1", "POST /api/credits", now)

	// Assert
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestIdempotencyRepository_Get_Hit, saklanan yanıtın gövdesiyle okunduğunu test eder.
func TestIdempotencyRepository_Get_Hit(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewIdempotencyRepository(db)
	now := time.Now()
	body := []byte(`{"success":true}`)

	mock.ExpectQuery("FROM idempotency_records").
		WillReturnRows(sqlmock.NewRows([]string{
			"idempotency_key", "operation_type", "request_hash", "response_status", "response_body", "created_at", "expires_at",
		}).AddRow("key-1", "op", "hash", 200, body, now, now.Add(time.Hour)))

	// Act
	rec, err := repo.Get(context.Background(), "key-1", "op", now)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "hash", rec.RequestHash)
	assert.Equal(t, 200, rec.ResponseStatus)
	assert.Equal(t, body, rec.ResponseBody)
}

// TestIdempotencyRepository_Insert, kaydın conflict koşuluyla yazıldığını test eder.
func TestIdempotencyRepository_Insert(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewIdempotencyRepository(db)
	now := time.Now()
	rec := &models.IdempotencyRecord{
		Key: "key-1", OperationType: "op", RequestHash: "hash",
		ResponseStatus: 200, ResponseBody: []byte(`{}`),
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}

	mock.ExpectExec("INSERT INTO idempotency_records").
		WithArgs("key-1", "op", "hash", 200, []byte(`{}`), now, now.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// Act
	err := repo.Insert(context.Background(), rec)

	// Assert
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestIdempotencyRepository_DeleteExpired, silinen satır sayısının döndüğünü test eder.
func TestIdempotencyRepository_DeleteExpired(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewIdempotencyRepository(db)
	now := time.Now()

	mock.ExpectExec("DELETE FROM idempotency_records").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 12))

	// Act
	n, err := repo.DeleteExpired(context.Background(), now)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}

// TestRateLimitRepository_CountSince, boş pencerede sıfır zaman döndüğünü test eder.
func TestRateLimitRepository_CountSince(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewRateLimitRepository(db)
	since := time.Now().Add(-time.Minute)

	mock.ExpectQuery("FROM rate_limit_entries").
		WithArgs("user:1", "ai", since).
		WillReturnRows(sqlmock.NewRows([]string{"count", "min"}).AddRow(0, nil))

	// Act
	count, oldest, err := repo.CountSince(context.Background(), "user:1", "ai", since)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.True(t, oldest.IsZero())
}

// TestRateLimitRepository_RecordAndDelete, kayıt ve temizlik sorgularını test eder.
func TestRateLimitRepository_RecordAndDelete(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewRateLimitRepository(db)
	now := time.Now()

	mock.ExpectExec("INSERT INTO rate_limit_entries").
		WithArgs("user:1", "ai", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM rate_limit_entries").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	// Act
	recordErr := repo.Record(context.Background(), "user:1", "ai", now)
	n, deleteErr := repo.DeleteBefore(context.Background(), now)

	// Assert
	require.NoError(t, recordErr)
	require.NoError(t, deleteErr)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSubscriptionRepository_GetByProviderID_NotFound, bulunamayan aboneliğin tipli hata döndüğünü test eder.
func TestSubscriptionRepository_GetByProviderID_NotFound(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewSubscriptionRepository(db)

	mock.ExpectQuery("FROM subscriptions").
		WithArgs(models.ProviderStripe, "sub_1").
		WillReturnError(sql.ErrNoRows)

	// Act
	sub, err := repo.GetByProviderID(context.Background(), models.ProviderStripe, "sub_1")

	// Assert
	assert.Nil(t, sub)
	assert.ErrorIs(t, err, models.ErrSubscriptionNotFound)
}

// TestSubscriptionRepository_GetByProviderID_Success, abonelik satırının okunduğunu test eder.
func TestSubscriptionRepository_GetByProviderID_Success(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewSubscriptionRepository(db)
	now := time.Now()

	mock.ExpectQuery("FROM subscriptions").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "provider", "provider_subscription_id", "user_id", "plan_id", "status", "current_period_end", "updated_at",
		}).AddRow(4, models.ProviderStripe, "sub_1", "user-1", "price_pro", models.SubscriptionActive, now, now))

	// Act
	sub, err := repo.GetByProviderID(context.Background(), models.ProviderStripe, "sub_1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(4), sub.ID)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	require.NotNil(t, sub.CurrentPeriodEnd)
}

// TestSubscriptionRepository_Upsert, upsert sonrası id'nin doldurulduğunu test eder.
func TestSubscriptionRepository_Upsert(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewSubscriptionRepository(db)
	now := time.Now()
	sub := &models.Subscription{
		Provider: models.ProviderPayPal, ProviderSubscriptionID: "I-SUB1",
		UserID: "user-1", Status: models.SubscriptionPastDue,
	}

	mock.ExpectQuery("INSERT INTO subscriptions").
		WithArgs(models.ProviderPayPal, "I-SUB1", "user-1", nil, models.SubscriptionPastDue, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "updated_at"}).AddRow(9, now))

	// Act
	err := repo.Upsert(context.Background(), sub)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(9), sub.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestNotificationRepository_Insert, yazma hatasının sarıldığını test eder.
func TestNotificationRepository_Insert(t *testing.T) {
	// Arrange
	db, mock := newMockDB(t)
	repo := NewNotificationRepository(db)
	dbErr := errors.New("disk full")

	mock.ExpectExec("INSERT INTO notifications").WillReturnError(dbErr)

	// Act
	err := repo.Insert(context.Background(), &models.Notification{ID: "n-1", UserID: "user-1"})

	// Assert
	assert.ErrorIs(t, err, dbErr)
}
