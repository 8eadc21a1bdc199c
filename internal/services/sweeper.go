package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/craiverse/credits-service/internal/metrics"
)

// SweepTask periyodik olarak çalışan tek bir temizlik işi
type SweepTask struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Sweeper süresi dolan idempotency kayıtlarını ve eski rate limit loglarını temizler
type Sweeper struct {
	interval time.Duration
	tasks    []SweepTask

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewSweeper yeni sweeper oluşturur
func NewSweeper(interval time.Duration, tasks ...SweepTask) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		interval: interval,
		tasks:    tasks,
		stop:     make(chan struct{}),
	}
}

// Start ticker döngüsünü başlatır
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		log.Info().Dur("interval", s.interval).Msg("🧹 Sweeper başlatıldı")
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), s.interval)
				s.RunOnce(ctx)
				cancel()
			}
		}
	}()
}

// Stop döngüyü durdurur ve bitmesini bekler
func (s *Sweeper) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	log.Info().Msg("⏹️ Sweeper durduruldu")
}

// RunOnce tüm işleri bir kez çalıştırır ve silinen satırları isimle döner
func (s *Sweeper) RunOnce(ctx context.Context) map[string]int64 {
	out := make(map[string]int64, len(s.tasks))
	for _, task := range s.tasks {
		n, err := task.Run(ctx)
		if err != nil {
			log.Error().Err(err).Str("task", task.Name).Msg("❌ Temizlik başarısız")
			continue
		}
		out[task.Name] = n
		metrics.SweptRows.WithLabelValues(task.Name).Add(float64(n))
		if n > 0 {
			log.Info().Str("task", task.Name).Int64("deleted", n).Msg("🧹 Temizlik tamamlandı")
		}
	}
	return out
}
