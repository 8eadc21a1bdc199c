// Package breaker dış servis çağrıları için servis başına circuit breaker.
// State process-local'dir; her instance kendi hata sayacını tutar.
package breaker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/craiverse/credits-service/internal/metrics"
	"github.com/craiverse/credits-service/internal/models"
)

// State isimleri
const (
	StateClosed   = "CLOSED"
	StateOpen     = "OPEN"
	StateHalfOpen = "HALF_OPEN"
)

// Config breaker ayarları
type Config struct {
	FailureThreshold    uint32        // art arda bu kadar hata devreyi açar
	OpenTimeout         time.Duration // OPEN'dan HALF_OPEN'a geçiş süresi
	HalfOpenMaxRequests uint32        // HALF_OPEN'da izin verilen deneme sayısı
	MaxPendingTickets   int           // CanMakeRequest ile ayrılmış, henüz Record edilmemiş bilet sınırı
}

// DefaultConfig varsayılan ayarlar
func DefaultConfig() *Config {
	return &Config{
		FailureThreshold:    5,
		OpenTimeout:         30 * time.Second,
		HalfOpenMaxRequests: 1,
		MaxPendingTickets:   128,
	}
}

// ServiceState health çıktısı için tek servisin durumu
type ServiceState struct {
	Service       string     `json:"service"`
	State         string     `json:"state"`
	Failures      uint32     `json:"failures"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
}

type entry struct {
	cb *gobreaker.TwoStepCircuitBreaker

	mu      sync.Mutex
	pending []func(bool)

	stateMu       sync.Mutex
	failures      uint32
	lastFailureAt time.Time
	openedAt      time.Time
}

// Registry servis adına göre lazy oluşturulan breaker'ları tutar
type Registry struct {
	config  *Config
	mu      sync.RWMutex
	entries map[string]*entry

	sleep  sleepFunc
	jitter func() time.Duration
}

// NewRegistry yeni registry oluşturur
func NewRegistry(config *Config) *Registry {
	if config == nil {
		config = DefaultConfig()
	}
	return &Registry{
		config:  config,
		entries: make(map[string]*entry),
		sleep:   sleepContext,
		jitter:  randomJitter,
	}
}

func (r *Registry) get(service string) *entry {
	r.mu.RLock()
	e, ok := r.entries[service]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[service]; ok {
		return e
	}

	e = &entry{}
	threshold := r.config.FailureThreshold
	e.cb = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        service,
		MaxRequests: r.config.HalfOpenMaxRequests,
		Timeout:     r.config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.stateMu.Lock()
			if to == gobreaker.StateOpen {
				e.openedAt = time.Now()
			}
			e.stateMu.Unlock()

			metrics.BreakerState.WithLabelValues(name).Set(float64(to))

			event := log.Info()
			if to == gobreaker.StateOpen {
				event = log.Warn()
			}
			event.
				Str("service", name).
				Str("from", stateName(from)).
				Str("to", stateName(to)).
				Msg("⚡ Circuit breaker durum değiştirdi")
		},
	})
	r.entries[service] = e
	metrics.BreakerState.WithLabelValues(service).Set(0)
	return e
}

// Allow bir deneme için bilet ister. Devre açıksa models.ErrCircuitOpen döner.
// Dönen done fonksiyonu çağrı sonucuyla tam bir kez çağrılmalıdır.
func (r *Registry) Allow(service string) (func(success bool), error) {
	e := r.get(service)
	done, err := e.cb.Allow()
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s: %w", service, models.ErrCircuitOpen)
		}
		return nil, err
	}

	return func(success bool) {
		e.record(success)
		done(success)
	}, nil
}

// CanMakeRequest servise istek atılıp atılamayacağını söyler. true dönerse bir
// bilet ayrılır; sonraki RecordSuccess/RecordFailure o bileti kapatır.
func (r *Registry) CanMakeRequest(service string) bool {
	e := r.get(service)

	e.mu.Lock()
	defer e.mu.Unlock()

	done, err := e.cb.Allow()
	if err != nil {
		return false
	}

	if len(e.pending) >= r.config.MaxPendingTickets {
		// en eski bileti başarısız saymadan bırak
		e.pending = e.pending[1:]
		log.Warn().Str("service", service).Msg("Circuit breaker pending ticket limit aşıldı")
	}
	e.pending = append(e.pending, done)
	return true
}

// RecordSuccess başarılı çağrıyı kaydeder
func (r *Registry) RecordSuccess(service string) {
	r.complete(service, true)
}

// RecordFailure başarısız çağrıyı kaydeder
func (r *Registry) RecordFailure(service string) {
	r.complete(service, false)
}

func (r *Registry) complete(service string, success bool) {
	e := r.get(service)

	e.mu.Lock()
	var done func(bool)
	if len(e.pending) > 0 {
		done = e.pending[0]
		e.pending = e.pending[1:]
	}
	e.mu.Unlock()

	if done == nil {
		// CanMakeRequest'siz kayıt: açık devrede sonuç sayılmaz
		d, err := e.cb.Allow()
		if err != nil {
			return
		}
		done = d
	}

	e.record(success)
	done(success)
}

func (e *entry) record(success bool) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if success {
		e.failures = 0
		return
	}
	e.failures++
	e.lastFailureAt = time.Now()
}

// State servisin güncel durumunu döner
func (r *Registry) State(service string) string {
	return stateName(r.get(service).cb.State())
}

// Failures servisin art arda hata sayısı
func (r *Registry) Failures(service string) uint32 {
	e := r.get(service)
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.failures
}

// Snapshot bilinen tüm servislerin durumunu isim sırasıyla döner
func (r *Registry) Snapshot() []ServiceState {
	r.mu.RLock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	out := make([]ServiceState, 0, len(names))
	for _, name := range names {
		e := r.get(name)
		state := e.cb.State()

		e.stateMu.Lock()
		s := ServiceState{
			Service:  name,
			State:    stateName(state),
			Failures: e.failures,
		}
		if !e.lastFailureAt.IsZero() {
			t := e.lastFailureAt
			s.LastFailureAt = &t
		}
		if state == gobreaker.StateOpen {
			t := e.openedAt.Add(r.config.OpenTimeout)
			s.NextAttemptAt = &t
		}
		e.stateMu.Unlock()

		out = append(out, s)
	}
	return out
}

func stateName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
