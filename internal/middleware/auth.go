package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/craiverse/credits-service/internal/auth"
	"github.com/craiverse/credits-service/internal/middleware/errors"
	"github.com/craiverse/credits-service/internal/models"
)

// ContextKey middleware'de context için key tipi
type ContextKey string

const PrincipalContextKey ContextKey = "principal"

// TokenValidator bearer token'ı claim'lere çevirir
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// AuthMiddleware Bearer token kontrolü yapar ve Principal'ı context'e koyar
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				log.Warn().
					Str("path", r.URL.Path).
					Str("method", r.Method).
					Msg("Authorization header missing")
				unauthorized(w, "Authorization header required")
				return
			}

			tokenParts := strings.Fields(authHeader)
			if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") {
				log.Warn().
					Str("path", r.URL.Path).
					Msg("Invalid Authorization format")
				unauthorized(w, "Authorization format: 'Bearer <token>'")
				return
			}

			claims, err := validator.ValidateToken(tokenParts[1])
			if err != nil {
				log.Warn().
					Err(err).
					Str("path", r.URL.Path).
					Msg("Token validation failed")
				unauthorized(w, "Invalid token")
				return
			}

			principal := claims.Principal()
			r = r.WithContext(WithPrincipal(r.Context(), principal))

			log.Debug().
				Str("subject", principal.Subject).
				Str("role", principal.Role).
				Str("app_id", principal.AppID).
				Str("path", r.URL.Path).
				Msg("🔐 Authentication successful")

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	apiErr := &errors.AuthError{Message: message, StatusCode: http.StatusUnauthorized}
	errors.WriteResponse(w, apiErr.Status(), errors.NewResponse(apiErr, w.Header().Get("X-Request-ID")))
}

// WithPrincipal principal'ı context'e ekler
func WithPrincipal(ctx context.Context, principal *models.Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, principal)
}

// PrincipalFromContext AuthMiddleware'in koyduğu principal'ı döner
func PrincipalFromContext(ctx context.Context) (*models.Principal, bool) {
	principal, ok := ctx.Value(PrincipalContextKey).(*models.Principal)
	return principal, ok && principal != nil
}
