package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/craiverse/credits-service/internal/middleware/errors"
	"github.com/craiverse/credits-service/internal/utils"
)

// ErrorHandlingMiddleware panic recovery. Handler'lar ve validation katmanı
// errors.APIError ile panic atarsa hata olduğu gibi JSON'a çevrilir; diğer
// panic'ler stack trace ile loglanıp 500 döner.
func ErrorHandlingMiddleware(config *errors.ErrorConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = errors.DefaultErrorConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				requestID := w.Header().Get("X-Request-ID")

				if apiErr, ok := recovered.(errors.APIError); ok {
					logAPIError(apiErr, r, fmt.Sprintf("%T", apiErr))
					resp := errors.NewResponse(apiErr, requestID)
					resp.Message = truncateString(resp.Message, config.MaxErrorLength)
					errors.WriteResponse(w, apiErr.Status(), resp)
					return
				}

				panicInfo := &errors.PanicInfo{
					Value:     recovered,
					Stack:     string(debug.Stack()),
					RequestID: requestID,
					Method:    r.Method,
					Path:      r.URL.Path,
					UserAgent: r.Header.Get("User-Agent"),
					ClientIP:  utils.GetClientIP(r),
					Timestamp: time.Now(),
				}
				logPanic(panicInfo, config)

				// panic öncesi yazılmış header'ları temizle
				for key := range w.Header() {
					if !contains(config.IncludeHeaders, key) {
						w.Header().Del(key)
					}
				}

				resp := errors.NewResponse(
					errors.New(http.StatusInternalServerError, errors.CodeInternal, getErrorMessage(http.StatusInternalServerError, config)),
					requestID,
				)
				if config.ShowStackTrace {
					resp.Stack = panicInfo.Stack
				}
				errors.WriteResponse(w, http.StatusInternalServerError, resp)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// ErrorHandlingMiddlewareForEnv ortama göre config seçer
func ErrorHandlingMiddlewareForEnv(production bool) func(http.Handler) http.Handler {
	if production {
		return ErrorHandlingMiddleware(errors.ProductionErrorConfig())
	}
	return ErrorHandlingMiddleware(errors.DevelopmentErrorConfig())
}
