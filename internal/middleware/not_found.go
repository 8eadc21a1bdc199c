package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/craiverse/credits-service/internal/middleware/errors"
	"github.com/craiverse/credits-service/internal/utils"
)

// NotFoundJSONHandler JSON formatında 404 Not Found döner
func NotFoundJSONHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := errors.NewResponse(
			errors.New(http.StatusNotFound, errors.CodeNotFound, "Endpoint not found"),
			w.Header().Get("X-Request-ID"),
		)
		resp.Details = map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		}
		errors.WriteResponse(w, http.StatusNotFound, resp)

		log.Warn().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("client_ip", utils.GetClientIP(r)).
			Msg("404 Not Found")
	}
}

// MethodNotAllowedJSONHandler JSON formatında 405 Method Not Allowed döner
func MethodNotAllowedJSONHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := errors.NewResponse(
			errors.New(http.StatusMethodNotAllowed, errors.CodeMethodNotAllowed, "HTTP method not supported for this endpoint"),
			w.Header().Get("X-Request-ID"),
		)
		resp.Details = map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
		}
		errors.WriteResponse(w, http.StatusMethodNotAllowed, resp)

		log.Warn().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("client_ip", utils.GetClientIP(r)).
			Msg("405 Method Not Allowed")
	}
}
