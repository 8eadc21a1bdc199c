package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// CORSConfig CORS middleware ayarları
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig verilen origin'ler için CORS ayarları. Tarayıcıdaki
// CRAIverse uygulamaları Idempotency-Key gönderebilmeli ve rate limit
// header'larını okuyabilmeli.
func DefaultCORSConfig(allowedOrigins []string) *CORSConfig {
	return &CORSConfig{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Authorization",
			"Content-Type",
			"Accept",
			"Origin",
			"X-Requested-With",
			"X-Request-ID",
			HeaderIdempotencyKey,
		},
		ExposedHeaders: []string{
			"Content-Length",
			"X-Request-ID",
			HeaderIdempotencyKey,
			HeaderIdempotencyReplayed,
			HeaderRateLimitLimit,
			HeaderRateLimitRemaining,
			HeaderRateLimitReset,
			"Retry-After",
		},
		AllowCredentials: true,
		MaxAge:           3600,
	}
}

// CORSMiddleware CORS header'larını ayarlayan middleware
func CORSMiddleware(config *CORSConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultCORSConfig(nil)
	}

	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")
	exposed := strings.Join(config.ExposedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := origin != "" && isAllowedOrigin(origin, config.AllowedOrigins)

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				if config.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
				if exposed != "" {
					w.Header().Set("Access-Control-Expose-Headers", exposed)
				}
			}

			// Preflight request (OPTIONS method) handling
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if allowed {
					w.Header().Set("Access-Control-Allow-Methods", methods)
					w.Header().Set("Access-Control-Allow-Headers", headers)
					if config.MaxAge > 0 {
						w.Header().Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
					}
				}

				log.Debug().
					Str("origin", origin).
					Bool("allowed", allowed).
					Str("method", r.Header.Get("Access-Control-Request-Method")).
					Msg("CORS preflight request handled")

				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isAllowedOrigin origin'in izin verilen listede olup olmadığını kontrol eder
func isAllowedOrigin(origin string, allowedOrigins []string) bool {
	for _, allowedOrigin := range allowedOrigins {
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
		// Wildcard pattern matching (*.domain.com gibi)
		if strings.HasPrefix(allowedOrigin, "*.") {
			domain := strings.TrimPrefix(allowedOrigin, "*.")
			if strings.HasSuffix(origin, "."+domain) {
				return true
			}
		}
	}
	return false
}
