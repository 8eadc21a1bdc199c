package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/craiverse/credits-service/internal/metrics"
)

// MetricsConfig middleware ayarları
type MetricsConfig struct {
	SlowRequestThreshold time.Duration // Yavaş istek eşiği
	SkipPaths            []string
}

// DefaultMetricsConfig varsayılan config
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		SlowRequestThreshold: 2 * time.Second,
		SkipPaths:            []string{"/metrics"},
	}
}

// MetricsMiddleware HTTP isteklerini Prometheus'a işler. Route label'ı mux
// path template'idir, böylece userId gibi değerler cardinality üretmez.
func MetricsMiddleware(config *MetricsConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultMetricsConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeTemplate(r)
			if contains(config.SkipPaths, route) {
				next.ServeHTTP(w, r)
				return
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			start := time.Now()
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())

			if config.SlowRequestThreshold > 0 && duration > config.SlowRequestThreshold {
				log.Warn().
					Str("method", r.Method).
					Str("route", route).
					Dur("duration", duration).
					Msg("🐌 Slow request detected")
			}
		})
	}
}

// routeTemplate eşleşen mux route'unun template'i, yoksa "unmatched"
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
