package middleware

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/craiverse/credits-service/internal/interfaces"
	"github.com/craiverse/credits-service/internal/middleware/errors"
	"github.com/craiverse/credits-service/internal/models"
	"github.com/craiverse/credits-service/internal/utils"
)

// RateLimitConfig kategori bazlı rate limit middleware ayarları
type RateLimitConfig struct {
	Category      string
	CustomMessage string
}

// DefaultRateLimitConfig verilen kategori için varsayılan ayarlar
func DefaultRateLimitConfig(category string) *RateLimitConfig {
	return &RateLimitConfig{
		Category:      category,
		CustomMessage: "Rate limit exceeded. Please try again later.",
	}
}

// RateLimitMiddleware persist edilen sliding window limiter'ı route'a uygular.
// Kimliği doğrulanmış isteklerde identifier subject, diğerlerinde client IP'dir.
func RateLimitMiddleware(limiter interfaces.RateLimiterInterface, config *RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := rateLimitIdentifier(r)

			result, err := limiter.CheckRateLimit(r.Context(), identifier, config.Category)
			if err != nil {
				// fail-closed modda limiter hata döner
				log.Error().
					Err(err).
					Str("identifier", identifier).
					Str("category", config.Category).
					Msg("Rate limit check failed")
				errors.Write(w, r, err)
				return
			}

			setRateLimitHeaders(w, result)

			if !result.Allowed {
				log.Warn().
					Str("identifier", identifier).
					Str("category", result.Category).
					Int("retry_after", result.ResetSeconds).
					Msg("Request blocked - rate limit exceeded")
				sendRateLimitResponse(w, config.CustomMessage, result.ResetSeconds)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitIdentifier(r *http.Request) string {
	if principal, ok := PrincipalFromContext(r.Context()); ok && principal.Subject != "" {
		if principal.IsService() && principal.AppID != "" {
			return "app:" + principal.AppID
		}
		return "user:" + principal.Subject
	}
	return "ip:" + utils.GetClientIP(r)
}

// setRateLimitHeaders rate limit header'larını set eder
func setRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set(HeaderRateLimitLimit, strconv.Itoa(result.Limit))
	w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(result.Remaining))
	w.Header().Set(HeaderRateLimitReset, strconv.Itoa(result.ResetSeconds))
	if result.Category != "" {
		w.Header().Set(HeaderRateLimitCategory, result.Category)
	}
}

// sendRateLimitResponse 429 yanıtı
func sendRateLimitResponse(w http.ResponseWriter, message string, retryAfter int) {
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	resp := errors.NewResponse(
		errors.New(http.StatusTooManyRequests, errors.CodeRateLimitExceeded, message),
		w.Header().Get("X-Request-ID"),
	)
	resp.RetryAfter = retryAfter
	errors.WriteResponse(w, http.StatusTooManyRequests, resp)
}
