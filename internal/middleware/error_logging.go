package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/craiverse/credits-service/internal/middleware/errors"
	"github.com/craiverse/credits-service/internal/utils"
)

// logAPIError API error'ları kategoriye göre loglar
func logAPIError(err errors.APIError, r *http.Request, errorType string) {
	logEvent := log.Warn().
		Str("error_type", errorType).
		Str("error_code", err.Code()).
		Str("error_message", err.Error()).
		Int("status_code", err.Status()).
		Str("path", r.URL.Path).
		Str("method", r.Method).
		Str("client_ip", utils.GetClientIP(r))

	switch e := err.(type) {
	case *errors.AuthError:
		logEvent.Str("category", "authentication").Msg("Authentication failed")
	case *errors.RBACError:
		logEvent.Str("category", "authorization").
			Str("resource", e.Resource).
			Str("action", e.Action).
			Msg("Authorization failed")
	case *errors.ValidationError:
		logEvent.Str("category", "validation").
			Str("field", e.Field).
			Interface("value", e.Value).
			Msg("Validation failed")
	default:
		logEvent.Str("category", "api_error").Msg("API error occurred")
	}
}

// logPanic panic durumunu detaylı şekilde loglar
func logPanic(panicInfo *errors.PanicInfo, config *errors.ErrorConfig) {
	logEvent := log.Error().
		Str("type", "panic").
		Str("request_id", panicInfo.RequestID).
		Str("method", panicInfo.Method).
		Str("path", panicInfo.Path).
		Str("client_ip", panicInfo.ClientIP).
		Str("user_agent", panicInfo.UserAgent).
		Time("timestamp", panicInfo.Timestamp).
		Interface("panic_value", panicInfo.Value)

	if config.EnablePanicLogs {
		logEvent.Str("stack_trace", panicInfo.Stack)
	}

	logEvent.Msg("🚨 Server panic recovered")
}
