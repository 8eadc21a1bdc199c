package middleware

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/craiverse/credits-service/internal/utils"
)

// ThrottleConfig edge throttle ayarları
type ThrottleConfig struct {
	RequestsPerMinute int
	Burst             int
	IdleTTL           time.Duration // Bu süre görülmeyen IP'lerin limiter'ı silinir
	WhitelistIPs      []string
	SkipPaths         []string
}

// DefaultThrottleConfig varsayılan edge throttle ayarları
func DefaultThrottleConfig() *ThrottleConfig {
	return &ThrottleConfig{
		RequestsPerMinute: 600,
		Burst:             50,
		IdleTTL:           10 * time.Minute,
		WhitelistIPs:      []string{},
		SkipPaths: []string{
			"/health",
			"/metrics",
		},
	}
}

// ipLimiter tek bir IP için token bucket
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// EdgeThrottle veritabanına gitmeden önce IP başına ani yükü keser
type EdgeThrottle struct {
	config   *ThrottleConfig
	limit    rate.Limit
	limiters map[string]*ipLimiter
	mutex    sync.Mutex
	stop     chan struct{}
	stopOnce sync.Once
}

// NewEdgeThrottle yeni throttle oluşturur ve idle limiter temizliğini başlatır
func NewEdgeThrottle(config *ThrottleConfig) *EdgeThrottle {
	if config == nil {
		config = DefaultThrottleConfig()
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}

	t := &EdgeThrottle{
		config:   config,
		limit:    rate.Limit(float64(config.RequestsPerMinute) / 60.0),
		limiters: make(map[string]*ipLimiter),
		stop:     make(chan struct{}),
	}

	go t.cleanupLimiters()

	return t
}

// Handler throttle middleware handler döner
func (t *EdgeThrottle) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if contains(t.config.SkipPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := utils.GetClientIP(r)
			if contains(t.config.WhitelistIPs, clientIP) {
				next.ServeHTTP(w, r)
				return
			}

			if !t.allow(clientIP, time.Now()) {
				log.Warn().
					Str("client_ip", clientIP).
					Str("path", r.URL.Path).
					Msg("Request throttled at edge")
				sendRateLimitResponse(w, "Too many requests from this address", t.retryAfter())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// allow IP'nin bucket'ından bir token almaya çalışır
func (t *EdgeThrottle) allow(ip string, now time.Time) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	l, exists := t.limiters[ip]
	if !exists {
		l = &ipLimiter{limiter: rate.NewLimiter(t.limit, t.config.Burst)}
		t.limiters[ip] = l
	}
	l.lastSeen = now

	return l.limiter.AllowN(now, 1)
}

// retryAfter bir token'ın dolması için gereken saniye
func (t *EdgeThrottle) retryAfter() int {
	if t.limit <= 0 {
		return 60
	}
	return int(math.Ceil(1 / float64(t.limit)))
}

// cleanupLimiters idle IP'leri periyodik olarak temizler
func (t *EdgeThrottle) cleanupLimiters() {
	ticker := time.NewTicker(t.config.IdleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case now := <-ticker.C:
			t.mutex.Lock()
			before := len(t.limiters)
			for ip, l := range t.limiters {
				if now.Sub(l.lastSeen) > t.config.IdleTTL {
					delete(t.limiters, ip)
				}
			}
			removed := before - len(t.limiters)
			t.mutex.Unlock()

			if removed > 0 {
				log.Debug().Int("removed", removed).Msg("Idle edge limiters cleaned up")
			}
		}
	}
}

// Stop temizlik goroutine'ini durdurur
func (t *EdgeThrottle) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}
