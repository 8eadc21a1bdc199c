package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craiverse/credits-service/internal/auth"
	"github.com/craiverse/credits-service/internal/config"
	"github.com/craiverse/credits-service/internal/handlers"
	"github.com/craiverse/credits-service/internal/interfaces"
	"github.com/craiverse/credits-service/internal/middleware"
	"github.com/craiverse/credits-service/internal/models"
	"github.com/craiverse/credits-service/internal/services"
)

// memoryRateStore bellek içi sliding window log
type memoryRateStore struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

var _ interfaces.RateLimitStore = (*memoryRateStore)(nil)

func (m *memoryRateStore) CountSince(_ context.Context, identifier, category string, since time.Time) (int, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int
	var oldest time.Time
	for _, at := range m.entries[identifier+"|"+category] {
		if at.After(since) {
			if count == 0 || at.Before(oldest) {
				oldest = at
			}
			count++
		}
	}
	return count, oldest, nil
}

func (m *memoryRateStore) Record(_ context.Context, identifier, category string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := identifier + "|" + category
	m.entries[k] = append(m.entries[k], at)
	return nil
}

func (m *memoryRateStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

// memoryIdempotencyRepo bellek içi idempotency kayıtları
type memoryIdempotencyRepo struct {
	mu      sync.Mutex
	records map[string]*models.IdempotencyRecord
}

var _ interfaces.IdempotencyRepositoryInterface = (*memoryIdempotencyRepo)(nil)

func (m *memoryIdempotencyRepo) Get(_ context.Context, key, op string, now time.Time) (*models.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key+"|"+op]
	if !ok || rec.Expired(now) {
		return nil, nil
	}
	return rec, nil
}

func (m *memoryIdempotencyRepo) Insert(_ context.Context, rec *models.IdempotencyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.Key+"|"+rec.OperationType]; !ok {
		m.records[rec.Key+"|"+rec.OperationType] = rec
	}
	return nil
}

func (m *memoryIdempotencyRepo) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

// countingLedger deduct çağrılarını sayan ledger
type countingLedger struct {
	interfaces.LedgerServiceInterface
	deducts atomic.Int64
}

func (l *countingLedger) Deduct(_ context.Context, req *models.DeductRequest) (*models.LedgerResult, error) {
	l.deducts.Add(1)
	return &models.LedgerResult{
		NewBalance:  90,
		Transaction: &models.CreditTransaction{UserID: req.UserID, Amount: -req.Amount, BalanceAfter: 90, Type: models.TxTypeDeduction},
	}, nil
}

func newTestRouter(t *testing.T, ledger interfaces.LedgerServiceInterface, paymentPerMinute int) (http.Handler, *auth.Manager) {
	t.Helper()

	limits := config.DefaultBilling().RateLimits
	limits[config.CategoryPayment] = config.CategoryLimit{PerMinute: paymentPerMinute, PerHour: 100, PerDay: 1000}

	throttle := middleware.NewEdgeThrottle(&middleware.ThrottleConfig{RequestsPerMinute: 6000, Burst: 1000, IdleTTL: time.Minute})
	t.Cleanup(throttle.Stop)

	tokens := auth.NewManager("test-secret", auth.DefaultIssuer)
	router := setupRouter(routerDeps{
		cfg:           &config.Config{},
		tokens:        tokens,
		rateLimiter:   services.NewRateLimitService(&memoryRateStore{entries: map[string][]time.Time{}}, limits),
		idempotency:   services.NewIdempotencyService(&memoryIdempotencyRepo{records: map[string]*models.IdempotencyRecord{}}, time.Hour),
		throttle:      throttle,
		creditHandler: handlers.NewCreditHandler(ledger),
		webhook:       handlers.NewWebhookHandler(nil),
		health:        handlers.NewHealthHandler(nil, nil),
	})
	return router, tokens
}

func deductRequest(t *testing.T, tokens *auth.Manager, key string) *http.Request {
	t.Helper()
	token, err := tokens.GenerateToken("user-1", models.RoleUser, "", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/credits", strings.NewReader(`{"action":"deduct","amount":10}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if key != "" {
		req.Header.Set(middleware.HeaderIdempotencyKey, key)
	}
	return req
}

// TestRouter_RetryReplaysBeforeRateLimit, başarılı bir isteğin tekrarının payment
// kotası dolmuşken bile cache'ten döndüğünü test eder.
func TestRouter_RetryReplaysBeforeRateLimit(t *testing.T) {
	// Arrange
	ledger := &countingLedger{}
	router, tokens := newTestRouter(t, ledger, 1)

	// Act
	first := httptest.NewRecorder()
	router.ServeHTTP(first, deductRequest(t, tokens, "retry-key"))
	retry := httptest.NewRecorder()
	router.ServeHTTP(retry, deductRequest(t, tokens, "retry-key"))
	fresh := httptest.NewRecorder()
	router.ServeHTTP(fresh, deductRequest(t, tokens, "another-key"))

	// Assert
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, retry.Code)
	assert.Equal(t, "true", retry.Header().Get(middleware.HeaderIdempotencyReplayed))
	assert.Equal(t, first.Body.String(), retry.Body.String())
	assert.Equal(t, http.StatusTooManyRequests, fresh.Code)
	assert.Equal(t, int64(1), ledger.deducts.Load())
}

// TestRouter_ReplaysDoNotConsumeQuota, replay'lerin payment kotasından düşmediğini test eder.
func TestRouter_ReplaysDoNotConsumeQuota(t *testing.T) {
	// Arrange
	ledger := &countingLedger{}
	router, tokens := newTestRouter(t, ledger, 2)

	// Act
	var replayCodes []int
	router.ServeHTTP(httptest.NewRecorder(), deductRequest(t, tokens, "key-a"))
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, deductRequest(t, tokens, "key-a"))
		replayCodes = append(replayCodes, rr.Code)
	}
	second := httptest.NewRecorder()
	router.ServeHTTP(second, deductRequest(t, tokens, "key-b"))

	// Assert
	assert.Equal(t, []int{200, 200, 200}, replayCodes)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Empty(t, second.Header().Get(middleware.HeaderIdempotencyReplayed))
	assert.Equal(t, int64(2), ledger.deducts.Load())
}
