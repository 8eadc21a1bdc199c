package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/craiverse/credits-service/internal/utils"
)

const requestIDContextKey ContextKey = "request_id"

// responseWriter status code ve boyutu yakalar
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	responseSize int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	if rw, ok := w.(*responseWriter); ok {
		return rw
	}
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

// WriteHeader captures status code
func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures response size
func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	size, err := rw.ResponseWriter.Write(b)
	rw.responseSize += int64(size)
	return size, err
}

// Unwrap http.ResponseController için
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LoggingConfig logging middleware ayarları
type LoggingConfig struct {
	SkipPaths []string // Log'lanmayacak path'ler (health check gibi)
}

// DefaultLoggingConfig varsayılan logging ayarları
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		SkipPaths: []string{
			"/health",
			"/metrics",
			"/favicon.ico",
		},
	}
}

// RequestLoggingMiddleware her isteğe X-Request-ID verir ve başlangıç/bitişi loglar
func RequestLoggingMiddleware(config *LoggingConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultLoggingConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if _, err := uuid.Parse(requestID); err != nil {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)
			r = r.WithContext(context.WithValue(r.Context(), requestIDContextKey, requestID))

			if shouldSkipLogging(r.URL.Path, config.SkipPaths) {
				next.ServeHTTP(w, r)
				return
			}

			startTime := time.Now()
			wrapped := newResponseWriter(w)
			clientIP := utils.GetClientIP(r)

			logEvent := log.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("client_ip", clientIP).
				Str("user_agent", r.Header.Get("User-Agent")).
				Int64("request_size", r.ContentLength)
			if r.URL.RawQuery != "" {
				logEvent.Str("query", r.URL.RawQuery)
			}
			logEvent.Msg("Request started")

			next.ServeHTTP(wrapped, r)

			duration := time.Since(startTime)

			level := zerolog.InfoLevel
			switch {
			case wrapped.statusCode >= 500:
				level = zerolog.ErrorLevel
			case wrapped.statusCode >= 400:
				level = zerolog.WarnLevel
			}

			log.WithLevel(level).
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("client_ip", clientIP).
				Int("status_code", wrapped.statusCode).
				Int64("response_size", wrapped.responseSize).
				Dur("duration", duration).
				Float64("duration_ms", float64(duration.Nanoseconds())/1e6).
				Msg("Request completed")
		})
	}
}

// RequestIDFromContext logging middleware'in atadığı request ID
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// shouldSkipLogging belirli path'lerin log'lanmaması gerekip gerekmediğini kontrol eder
func shouldSkipLogging(path string, skipPaths []string) bool {
	for _, skipPath := range skipPaths {
		if path == skipPath {
			return true
		}
		if strings.HasSuffix(skipPath, "*") && strings.HasPrefix(path, strings.TrimSuffix(skipPath, "*")) {
			return true
		}
	}
	return false
}
