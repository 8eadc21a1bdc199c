package services

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/craiverse/credits-service/internal/config"
	"github.com/craiverse/credits-service/internal/interfaces"
	"github.com/craiverse/credits-service/internal/metrics"
	"github.com/craiverse/credits-service/internal/models"
)

// RateLimitRetention log satırlarının tutulduğu süre (en uzun pencere)
const RateLimitRetention = 24 * time.Hour

// RateLimitService persist edilen log üzerinde sliding window rate limiter
type RateLimitService struct {
	store        interfaces.RateLimitStore
	limits       map[string]config.CategoryLimit
	failOpen     bool
	now          func() time.Time
	cleanupEvery int64

	admitted atomic.Int64
	cleaning atomic.Bool
}

var _ interfaces.RateLimiterInterface = (*RateLimitService)(nil)

// RateLimitOption RateLimitService ayarı
type RateLimitOption func(*RateLimitService)

// WithClock sentetik saat verir (testler için)
func WithClock(now func() time.Time) RateLimitOption {
	return func(s *RateLimitService) { s.now = now }
}

// WithFailOpen store hatasında isteğe izin verilip verilmeyeceği
func WithFailOpen(failOpen bool) RateLimitOption {
	return func(s *RateLimitService) { s.failOpen = failOpen }
}

// WithCleanupEvery her n kabulde bir arka plan temizliği tetikler, 0 kapatır
func WithCleanupEvery(n int64) RateLimitOption {
	return func(s *RateLimitService) { s.cleanupEvery = n }
}

// NewRateLimitService yeni service oluşturur
func NewRateLimitService(store interfaces.RateLimitStore, limits map[string]config.CategoryLimit, opts ...RateLimitOption) *RateLimitService {
	if limits == nil {
		limits = config.DefaultBilling().RateLimits
	}
	s := &RateLimitService{
		store:        store,
		limits:       limits,
		failOpen:     true,
		now:          time.Now,
		cleanupEvery: 1000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RateLimitService) resolve(category string) (string, config.CategoryLimit) {
	if limit, ok := s.limits[category]; ok {
		return category, limit
	}
	if limit, ok := s.limits[config.CategoryPublic]; ok {
		return config.CategoryPublic, limit
	}
	return config.CategoryPublic, config.DefaultBilling().RateLimits[config.CategoryPublic]
}

// CheckRateLimit dakika, saat ve gün pencerelerini sırayla kontrol eder.
// Kabul edilen istek loglanır; reddedilen istek loglanmaz.
func (s *RateLimitService) CheckRateLimit(ctx context.Context, identifier, category string) (*models.RateLimitResult, error) {
	category, limit := s.resolve(category)
	now := s.now()

	windows := []models.RateWindow{
		{Span: time.Minute, Limit: limit.PerMinute},
		{Span: time.Hour, Limit: limit.PerHour},
		{Span: 24 * time.Hour, Limit: limit.PerDay},
	}

	result := &models.RateLimitResult{
		Allowed:   true,
		Remaining: math.MaxInt,
		Category:  category,
	}

	for _, w := range windows {
		count, oldest, err := s.store.CountSince(ctx, identifier, category, now.Add(-w.Span))
		if err != nil {
			return s.storeFailure(category, limit, err)
		}

		if count >= w.Limit {
			metrics.RateLimitDecisions.WithLabelValues(category, "rejected").Inc()
			return &models.RateLimitResult{
				Allowed:      false,
				Remaining:    0,
				ResetSeconds: resetSeconds(oldest, w.Span, now),
				Limit:        w.Limit,
				Window:       w.Span,
				Category:     category,
			}, nil
		}

		if left := w.Limit - count - 1; left < result.Remaining {
			result.Remaining = left
			result.Limit = w.Limit
			result.Window = w.Span
			result.ResetSeconds = resetSeconds(oldest, w.Span, now)
		}
	}

	if err := s.store.Record(ctx, identifier, category, now); err != nil {
		if !s.failOpen {
			return nil, fmt.Errorf("rate limit kaydı yazılamadı: %w", err)
		}
		log.Warn().Err(err).Str("identifier", identifier).Str("category", category).Msg("Rate limit kaydı yazılamadı, istek kabul edildi")
	}

	metrics.RateLimitDecisions.WithLabelValues(category, "allowed").Inc()
	s.maybeCleanup()
	return result, nil
}

func (s *RateLimitService) storeFailure(category string, limit config.CategoryLimit, err error) (*models.RateLimitResult, error) {
	if !s.failOpen {
		return nil, fmt.Errorf("rate limit kontrolü yapılamadı: %w", err)
	}

	metrics.RateLimitDecisions.WithLabelValues(category, "fail_open").Inc()
	log.Warn().Err(err).Str("category", category).Msg("⚠️ Rate limit store hatası, fail-open ile izin verildi")

	return &models.RateLimitResult{
		Allowed:      true,
		Remaining:    limit.PerMinute,
		ResetSeconds: int(time.Minute.Seconds()),
		Limit:        limit.PerMinute,
		Window:       time.Minute,
		Category:     category,
	}, nil
}

// Cleanup saklama süresini geçen log satırlarını siler
func (s *RateLimitService) Cleanup(ctx context.Context) (int64, error) {
	return s.store.DeleteBefore(ctx, s.now().Add(-RateLimitRetention))
}

func (s *RateLimitService) maybeCleanup() {
	if s.cleanupEvery <= 0 {
		return
	}
	if s.admitted.Add(1)%s.cleanupEvery != 0 {
		return
	}
	if !s.cleaning.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer s.cleaning.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		n, err := s.Cleanup(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Rate limit arka plan temizliği başarısız")
			return
		}
		log.Debug().Int64("deleted", n).Msg("Rate limit arka plan temizliği tamamlandı")
	}()
}

// resetSeconds pencerenin en eski kaydının pencereden çıkmasına kalan saniye, en az 1
func resetSeconds(oldest time.Time, span time.Duration, now time.Time) int {
	if oldest.IsZero() {
		return int(span.Seconds())
	}
	secs := int(math.Ceil(oldest.Add(span).Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
