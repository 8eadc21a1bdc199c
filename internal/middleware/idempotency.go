package middleware

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/craiverse/credits-service/internal/interfaces"
	"github.com/craiverse/credits-service/internal/middleware/errors"
	"github.com/craiverse/credits-service/internal/models"
	"github.com/craiverse/credits-service/internal/services"
)

// IdempotencyConfig idempotency middleware ayarları
type IdempotencyConfig struct {
	FailOpen    bool     // Store okunamazsa isteği yine de işle
	RequireKey  bool     // Key'siz mutasyonları 400 ile reddet
	Methods     []string // Idempotency uygulanan method'lar
	MaxBodySize int64
}

// DefaultIdempotencyConfig varsayılan ayarlar
func DefaultIdempotencyConfig() *IdempotencyConfig {
	return &IdempotencyConfig{
		FailOpen:    false,
		RequireKey:  false,
		Methods:     []string{http.MethodPost},
		MaxBodySize: 1 << 20,
	}
}

// captureWriter yanıtı client'a yazarken bir kopyasını tutar
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *captureWriter) Unwrap() http.ResponseWriter {
	return c.ResponseWriter
}

// keyLocks aynı key ile eşzamanlı gelen istekleri instance içinde sıraya koyar
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// IdempotencyMiddleware Idempotency-Key taşıyan mutasyonları bir kez çalıştırır,
// tekrarlarında saklanan yanıtı birebir döner
func IdempotencyMiddleware(svc interfaces.IdempotencyServiceInterface, config *IdempotencyConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultIdempotencyConfig()
	}
	inflight := &keyLocks{locks: make(map[string]*keyLock)}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !contains(config.Methods, r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(HeaderIdempotencyKey)
			if key == "" {
				if config.RequireKey {
					errors.Write(w, r, models.ErrIdempotencyKeyMissing)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if err := services.ValidateIdempotencyKey(key); err != nil {
				errors.Write(w, r, err)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, config.MaxBodySize))
			if err != nil {
				panic(&errors.ValidationError{
					Message:    "Request body too large or unreadable",
					StatusCode: http.StatusRequestEntityTooLarge,
					Field:      "body",
				})
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			// action gövdede, dolayısıyla hash'in içinde; farklı action aynı key ile 422 alır
			operationType := r.Method + " " + routeTemplate(r)
			// farklı çağıranlar aynı key'i kullanırsa birbirinin yanıtını göremez
			scope := r.URL.RequestURI()
			if principal, ok := PrincipalFromContext(r.Context()); ok {
				scope = principal.Subject + " " + scope
			}
			requestHash := services.HashRequest(r.Method, scope, body)

			unlock := inflight.lock(key + "\x00" + operationType)
			defer unlock()

			logger := log.With().
				Str("idempotency_key", key).
				Str("operation_type", operationType).
				Logger()

			storeResponse := true
			result, err := svc.Check(r.Context(), key, operationType, requestHash)
			switch {
			case err == nil:
			case stderrors.Is(err, models.ErrIdempotencyKeyReused), stderrors.Is(err, models.ErrInvalidIdempotencyKey):
				errors.Write(w, r, err)
				return
			case config.FailOpen:
				logger.Warn().Err(err).Msg("⚠️ Idempotency store unavailable, processing without protection")
				storeResponse = false
			default:
				logger.Error().Err(err).Msg("Idempotency store unavailable")
				errors.Write(w, r, models.ErrIdempotencyUnavailable)
				return
			}

			w.Header().Set(HeaderIdempotencyKey, key)

			if result != nil && result.Exists {
				logger.Info().Int("status", result.Response.Status).Msg("🔁 Replaying cached response")
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(HeaderIdempotencyReplayed, "true")
				w.WriteHeader(result.Response.Status)
				if _, err := w.Write(result.Response.Body); err != nil {
					logger.Error().Err(err).Msg("Cached response write failed")
				}
				return
			}

			capture := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			if !storeResponse || capture.status == 0 {
				return
			}

			// client bağlantıyı kapatsa bile sonuç saklanmalı
			ctx := context.WithoutCancel(r.Context())
			if err := svc.Store(ctx, key, operationType, requestHash, capture.status, capture.body.Bytes()); err != nil {
				logger.Error().Err(err).Msg("Idempotent response could not be stored")
			}
		})
	}
}
