package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/craiverse/credits-service/internal/breaker"
)

// Pinger veritabanı bağlantısını kontrol eder (*sql.DB sağlar)
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler servis sağlığını raporlar
type HealthHandler struct {
	db       Pinger
	breakers *breaker.Registry
	started  time.Time
}

// NewHealthHandler yeni handler oluşturur
func NewHealthHandler(db Pinger, breakers *breaker.Registry) *HealthHandler {
	return &HealthHandler{db: db, breakers: breakers, started: time.Now()}
}

type healthResponse struct {
	Status          string                 `json:"status"`
	Database        string                 `json:"database"`
	UptimeSeconds   int64                  `json:"uptime_seconds"`
	CircuitBreakers []breaker.ServiceState `json:"circuit_breakers"`
	Timestamp       string                 `json:"timestamp"`
}

// Health GET /health. Veritabanı erişilemezse 503 döner; açık breaker'lar
// sadece "degraded" olarak raporlanır.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:          "ok",
		Database:        "up",
		UptimeSeconds:   int64(time.Since(h.started).Seconds()),
		CircuitBreakers: []breaker.ServiceState{},
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("Health check: database unreachable")
		resp.Status = "unavailable"
		resp.Database = "down"
		status = http.StatusServiceUnavailable
	}

	if h.breakers != nil {
		resp.CircuitBreakers = h.breakers.Snapshot()
		for _, s := range resp.CircuitBreakers {
			if s.State != breaker.StateClosed && status == http.StatusOK {
				resp.Status = "degraded"
			}
		}
	}

	writeJSON(w, status, resp)
}
