package models

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientCredits    = errors.New("insufficient credits")
	ErrAlreadyRefunded        = errors.New("operation already refunded")
	ErrDuplicateGrant         = errors.New("credits already granted for reference")
	ErrIdempotencyKeyReused   = errors.New("idempotency key reused with a different request")
	ErrInvalidIdempotencyKey  = errors.New("idempotency key must be 1-255 printable characters")
	ErrIdempotencyKeyMissing  = errors.New("Idempotency-Key header is required")
	ErrIdempotencyUnavailable = errors.New("idempotency store unavailable")
	ErrSubscriptionPending    = errors.New("subscription not known yet")
	ErrRateLimitExceeded      = errors.New("rate limit exceeded")
	ErrCircuitOpen            = errors.New("circuit breaker open")
	ErrSignatureVerification  = errors.New("webhook signature verification failed")
	ErrInvalidAmount          = errors.New("amount must be between 1 and 1000000")
	ErrUserRequired           = errors.New("userId is required")
	ErrOperationIDRequired    = errors.New("operationId is required")
	ErrSubscriptionNotFound   = errors.New("subscription not found")
)

// InsufficientCreditsError bakiye yetersiz olduğunda mevcut ve gereken miktarı taşır
type InsufficientCreditsError struct {
	Balance  int64
	Required int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: balance %d, required %d", e.Balance, e.Required)
}

// Unwrap errors.Is(err, ErrInsufficientCredits) için
func (e *InsufficientCreditsError) Unwrap() error {
	return ErrInsufficientCredits
}
