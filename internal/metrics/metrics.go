// Package metrics Prometheus metrikleri. Tüm vektörler default registry'ye kayıtlıdır.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "credits"

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Requests currently being served.",
		},
	)

	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Ledger operations by action and outcome.",
		},
		[]string{"action", "outcome"}, // outcome: ok, insufficient, duplicate, invalid, error
	)

	CreditsMoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_moved_total",
			Help:      "Credits moved through the ledger by transaction type.",
		},
		[]string{"type"},
	)

	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_decisions_total",
			Help:      "Rate limit decisions by category and result.",
		},
		[]string{"category", "result"}, // allowed, rejected, fail_open
	)

	IdempotencyEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotency_events_total",
			Help:      "Idempotency store events.",
		},
		[]string{"event"}, // miss, replay, key_reused, stored, skipped, error
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per service (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Inbound provider webhook events.",
		},
		[]string{"provider", "event_type", "result"},
	)

	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Notifications dropped because the queue was full.",
		},
	)

	SweptRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_rows_total",
			Help:      "Rows removed by the background sweeper.",
		},
		[]string{"table"},
	)
)

// Handler /metrics endpoint'i
func Handler() http.Handler {
	return promhttp.Handler()
}
