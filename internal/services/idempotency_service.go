package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/craiverse/credits-service/internal/interfaces"
	"github.com/craiverse/credits-service/internal/metrics"
	"github.com/craiverse/credits-service/internal/models"
)

// DefaultIdempotencyTTL kayıtların saklanma süresi
const DefaultIdempotencyTTL = 24 * time.Hour

const maxIdempotencyKeyLength = 255

// IdempotencyService tekrar edilen finansal istekleri cache'lenmiş yanıtla karşılar
type IdempotencyService struct {
	repo interfaces.IdempotencyRepositoryInterface
	ttl  time.Duration
	now  func() time.Time
}

var _ interfaces.IdempotencyServiceInterface = (*IdempotencyService)(nil)

// NewIdempotencyService yeni service oluşturur
func NewIdempotencyService(repo interfaces.IdempotencyRepositoryInterface, ttl time.Duration) *IdempotencyService {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyService{repo: repo, ttl: ttl, now: time.Now}
}

// ValidateIdempotencyKey key formatını doğrular
func ValidateIdempotencyKey(key string) error {
	if key == "" || len(key) > maxIdempotencyKeyLength {
		return models.ErrInvalidIdempotencyKey
	}
	for _, r := range key {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return models.ErrInvalidIdempotencyKey
		}
	}
	return nil
}

// Check key+operation için kayıt arar
func (s *IdempotencyService) Check(ctx context.Context, key, operationType, requestHash string) (*models.IdempotencyResult, error) {
	if err := ValidateIdempotencyKey(key); err != nil {
		return nil, err
	}

	rec, err := s.repo.Get(ctx, key, operationType, s.now().UTC())
	if err != nil {
		metrics.IdempotencyEvents.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("idempotency kontrolü yapılamadı: %w", err)
	}

	if rec == nil {
		metrics.IdempotencyEvents.WithLabelValues("miss").Inc()
		return &models.IdempotencyResult{Exists: false}, nil
	}

	if rec.RequestHash != requestHash {
		metrics.IdempotencyEvents.WithLabelValues("key_reused").Inc()
		log.Warn().
			Str("idempotency_key", key).
			Str("operation_type", operationType).
			Msg("⚠️ Idempotency key farklı bir istekle tekrar kullanıldı")
		return nil, models.ErrIdempotencyKeyReused
	}

	metrics.IdempotencyEvents.WithLabelValues("replay").Inc()
	return &models.IdempotencyResult{
		Exists: true,
		Response: &models.CachedResponse{
			Status: rec.ResponseStatus,
			Body:   rec.ResponseBody,
		},
	}, nil
}

// Store yanıtı saklar. 5xx yanıtlar saklanmaz, istemci tekrar deneyebilir.
func (s *IdempotencyService) Store(ctx context.Context, key, operationType, requestHash string, status int, body []byte) error {
	if status >= http.StatusInternalServerError {
		metrics.IdempotencyEvents.WithLabelValues("skipped").Inc()
		return nil
	}
	if err := ValidateIdempotencyKey(key); err != nil {
		return err
	}

	now := s.now().UTC()
	rec := &models.IdempotencyRecord{
		Key:            key,
		OperationType:  operationType,
		RequestHash:    requestHash,
		ResponseStatus: status,
		ResponseBody:   body,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
	}

	if err := s.repo.Insert(ctx, rec); err != nil {
		metrics.IdempotencyEvents.WithLabelValues("error").Inc()
		return fmt.Errorf("idempotency yanıtı saklanamadı: %w", err)
	}

	metrics.IdempotencyEvents.WithLabelValues("stored").Inc()
	return nil
}

// Sweep süresi dolan kayıtları siler
func (s *IdempotencyService) Sweep(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.now().UTC())
}

// HashRequest istek gövdesinin method ve path ile birlikte SHA-256 özeti
func HashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
