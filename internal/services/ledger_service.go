package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/craiverse/credits-service/internal/interfaces"
	"github.com/craiverse/credits-service/internal/metrics"
	"github.com/craiverse/credits-service/internal/models"
)

// LedgerService kredi ledger business logic'i
type LedgerService struct {
	repo     interfaces.CreditRepositoryInterface
	notifier interfaces.Notifier
}

// NewLedgerService yeni service oluşturur. notifier nil olabilir.
func NewLedgerService(repo interfaces.CreditRepositoryInterface, notifier interfaces.Notifier) *LedgerService {
	return &LedgerService{repo: repo, notifier: notifier}
}

var _ interfaces.LedgerServiceInterface = (*LedgerService)(nil)

func validate(userID string, amount int64) error {
	if strings.TrimSpace(userID) == "" {
		return models.ErrUserRequired
	}
	if !models.ValidAmount(amount) {
		return models.ErrInvalidAmount
	}
	return nil
}

// Check bakiyenin yeterli olup olmadığını söyler
func (s *LedgerService) Check(ctx context.Context, userID string, amount int64) (*models.CreditCheck, error) {
	if err := validate(userID, amount); err != nil {
		return nil, err
	}

	acc, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("bakiye kontrolü yapılamadı: %w", err)
	}

	return &models.CreditCheck{
		HasEnough: acc.Balance >= amount,
		Balance:   acc.Balance,
		Required:  amount,
	}, nil
}

// Deduct kullanım için kredi düşer
func (s *LedgerService) Deduct(ctx context.Context, req *models.DeductRequest) (*models.LedgerResult, error) {
	if err := validate(req.UserID, req.Amount); err != nil {
		metrics.LedgerOperations.WithLabelValues("deduct", "invalid").Inc()
		return nil, err
	}

	result, err := s.repo.Deduct(ctx, req)
	if err != nil {
		var insufficient *models.InsufficientCreditsError
		if errors.As(err, &insufficient) {
			metrics.LedgerOperations.WithLabelValues("deduct", "insufficient").Inc()
			log.Info().
				Str("user_id", req.UserID).
				Int64("amount", req.Amount).
				Int64("balance", insufficient.Balance).
				Msg("💳 Yetersiz kredi")
			return nil, err
		}
		metrics.LedgerOperations.WithLabelValues("deduct", "error").Inc()
		return nil, fmt.Errorf("kredi düşülemedi: %w", err)
	}

	metrics.LedgerOperations.WithLabelValues("deduct", "ok").Inc()
	metrics.CreditsMoved.WithLabelValues(models.TxTypeDeduction).Add(float64(req.Amount))
	log.Info().
		Str("user_id", req.UserID).
		Int64("amount", req.Amount).
		Int64("balance_after", result.NewBalance).
		Str("app_id", req.AppID).
		Str("operation_id", req.OperationID).
		Msg("➖ Kredi düşüldü")

	return result, nil
}

// Add kredi ekler ve kullanıcıya bildirim kuyruğa atar
func (s *LedgerService) Add(ctx context.Context, req *models.AddRequest) (*models.LedgerResult, error) {
	if err := validate(req.UserID, req.Amount); err != nil {
		metrics.LedgerOperations.WithLabelValues("add", "invalid").Inc()
		return nil, err
	}

	result, err := s.repo.Add(ctx, req)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateGrant) {
			metrics.LedgerOperations.WithLabelValues("add", "duplicate").Inc()
			log.Info().
				Str("user_id", req.UserID).
				Str("reference_id", req.ReferenceID).
				Msg("🔁 Aynı referans için kredi zaten eklenmiş")
			return nil, err
		}
		metrics.LedgerOperations.WithLabelValues("add", "error").Inc()
		return nil, fmt.Errorf("kredi eklenemedi: %w", err)
	}

	metrics.LedgerOperations.WithLabelValues("add", "ok").Inc()
	metrics.CreditsMoved.WithLabelValues(result.Transaction.Type).Add(float64(req.Amount))
	log.Info().
		Str("user_id", req.UserID).
		Int64("amount", req.Amount).
		Int64("balance_after", result.NewBalance).
		Str("source", req.Source).
		Str("reference_id", req.ReferenceID).
		Msg("➕ Kredi eklendi")

	s.notify(&models.Notification{
		UserID: req.UserID,
		Kind:   models.NotificationCreditsAdded,
		Title:  "Credits added",
		Body:   fmt.Sprintf("%d credits were added to your account. New balance: %d.", req.Amount, result.NewBalance),
	})

	return result, nil
}

// Refund operation_id başına bir kez iade yapar
func (s *LedgerService) Refund(ctx context.Context, req *models.RefundRequest) (*models.LedgerResult, error) {
	if err := validate(req.UserID, req.Amount); err != nil {
		metrics.LedgerOperations.WithLabelValues("refund", "invalid").Inc()
		return nil, err
	}
	if strings.TrimSpace(req.OperationID) == "" {
		metrics.LedgerOperations.WithLabelValues("refund", "invalid").Inc()
		return nil, models.ErrOperationIDRequired
	}

	result, err := s.repo.Refund(ctx, req)
	if err != nil {
		if errors.Is(err, models.ErrAlreadyRefunded) {
			metrics.LedgerOperations.WithLabelValues("refund", "duplicate").Inc()
			log.Warn().
				Str("user_id", req.UserID).
				Str("operation_id", req.OperationID).
				Msg("⚠️ İşlem zaten iade edilmiş")
			return nil, err
		}
		metrics.LedgerOperations.WithLabelValues("refund", "error").Inc()
		return nil, fmt.Errorf("iade yapılamadı: %w", err)
	}

	metrics.LedgerOperations.WithLabelValues("refund", "ok").Inc()
	metrics.CreditsMoved.WithLabelValues(models.TxTypeRefund).Add(float64(req.Amount))
	log.Info().
		Str("user_id", req.UserID).
		Int64("amount", req.Amount).
		Str("operation_id", req.OperationID).
		Msg("↩️ Kredi iade edildi")

	return result, nil
}

// GetAccount hesap özetini getirir
func (s *LedgerService) GetAccount(ctx context.Context, userID string) (*models.CreditAccount, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, models.ErrUserRequired
	}
	acc, err := s.repo.GetAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("hesap getirilemedi: %w", err)
	}
	return acc, nil
}

// ListTransactions ledger geçmişini getirir
func (s *LedgerService) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.CreditTransaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, models.ErrUserRequired
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	txs, err := s.repo.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("transaction geçmişi alınamadı: %w", err)
	}
	return txs, nil
}

func (s *LedgerService) notify(n *models.Notification) {
	if s.notifier == nil {
		return
	}
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now().UTC()
	if !s.notifier.Enqueue(n) {
		log.Warn().Str("user_id", n.UserID).Str("kind", n.Kind).Msg("Bildirim kuyruğu dolu, bildirim atlandı")
	}
}
