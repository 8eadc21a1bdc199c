package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/craiverse/credits-service/internal/interfaces"
	"github.com/craiverse/credits-service/internal/metrics"
	"github.com/craiverse/credits-service/internal/models"
)

// NotificationQueue bildirimleri worker'lar ile arka planda yazar. Best effort:
// kuyruk doluysa bildirim düşürülür, ledger işlemi etkilenmez.
type NotificationQueue struct {
	jobChan    chan *models.Notification
	workers    int
	bufferSize int
	wg         sync.WaitGroup
	repo       interfaces.NotificationRepositoryInterface

	mu      sync.RWMutex
	stopped bool
}

var _ interfaces.Notifier = (*NotificationQueue)(nil)

// NewNotificationQueue yeni queue oluşturur
func NewNotificationQueue(workers int, repo interfaces.NotificationRepositoryInterface, bufferSize int) *NotificationQueue {
	if workers < 1 {
		workers = 1
	}
	return &NotificationQueue{
		jobChan:    make(chan *models.Notification, bufferSize),
		workers:    workers,
		bufferSize: bufferSize,
		repo:       repo,
	}
}

// Start worker'ları başlatır
func (q *NotificationQueue) Start() {
	log.Info().
		Int("workers", q.workers).
		Int("buffer_size", q.bufferSize).
		Msg("🔄 Notification queue başlatıldı")

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Stop yeni işleri reddeder, kuyruktakileri bitirip döner
func (q *NotificationQueue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.jobChan)
	q.mu.Unlock()

	q.wg.Wait()
	log.Info().Msg("⏹️ Notification queue durduruldu")
}

// Enqueue bildirimi kuyruğa ekler, kuyruk dolu veya kapalıysa false döner
func (q *NotificationQueue) Enqueue(n *models.Notification) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		metrics.NotificationsDropped.Inc()
		return false
	}

	select {
	case q.jobChan <- n:
		return true
	default:
		metrics.NotificationsDropped.Inc()
		return false
	}
}

func (q *NotificationQueue) worker(id int) {
	defer q.wg.Done()

	for n := range q.jobChan {
		q.process(id, n)
	}
}

func (q *NotificationQueue) process(id int, n *models.Notification) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("recover", r).
				Int("worker_id", id).
				Msg("🚨 Worker panikledi ama toparlandı")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := q.repo.Insert(ctx, n); err != nil {
		log.Error().Err(err).Int("worker_id", id).Str("user_id", n.UserID).Msg("❌ Bildirim yazılamadı")
		return
	}
	log.Debug().Int("worker_id", id).Str("notification_id", n.ID).Msg("📨 Bildirim yazıldı")
}
