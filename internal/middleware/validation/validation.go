package validation

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/craiverse/credits-service/internal/middleware/errors"
)

// Config validation middleware ayarları
type Config struct {
	MaxBodySize         int64             // Maximum request body size (bytes)
	AllowedMethods      []string          // Allowed HTTP methods
	ContentTypes        []string          // Allowed content types
	JSONValidation      bool              // Enable JSON validation
	RequireNonEmptyJSON bool              // Require non-empty JSON body for JSON requests
	QueryValidation     map[string]string // Query parameter validation rules
}

// DefaultConfig varsayılan validation ayarları
func DefaultConfig() *Config {
	return &Config{
		MaxBodySize: 64 * 1024, // 64KB, kredi istekleri küçük
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodOptions,
		},
		ContentTypes:        []string{"application/json"},
		JSONValidation:      true,
		RequireNonEmptyJSON: true,
		QueryValidation:     map[string]string{},
	}
}

// CreditsConfig /api/credits route'ları için ayarlar
func CreditsConfig() *Config {
	config := DefaultConfig()
	config.QueryValidation = map[string]string{
		"userId": RuleIdentifier,
		"limit":  RulePositiveInteger,
		"offset": RuleNonNegativeInteger,
	}
	return config
}

// Middleware ana validation middleware'i. Hatalar ValidationError panic'i
// olarak recovery middleware'ine bırakılır.
func Middleware(config *Config) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// CORS preflight
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			if err := ValidateMethod(r, config.AllowedMethods); err != nil {
				panic(&errors.ValidationError{
					Message:    err.Error(),
					StatusCode: http.StatusMethodNotAllowed,
					Field:      "method",
					Value:      r.Method,
				})
			}

			if err := ValidateContent(r, config); err != nil {
				panic(&errors.ValidationError{
					Message:    err.Error(),
					StatusCode: http.StatusBadRequest,
					Field:      "content",
					Value:      "content_validation_failed",
				})
			}

			if err := ValidateQueryParameters(r, config.QueryValidation); err != nil {
				panic(&errors.ValidationError{
					Message:    err.Error(),
					StatusCode: http.StatusBadRequest,
					Field:      "query",
					Value:      "invalid_query_parameter",
				})
			}

			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int64("content_length", r.ContentLength).
				Msg("Request validation passed")

			next.ServeHTTP(w, r)
		})
	}
}
