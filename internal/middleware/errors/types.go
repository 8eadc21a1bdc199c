package errors

import (
	stderrors "errors"
	"net/http"

	"github.com/craiverse/credits-service/internal/models"
)

// Error code'ları
const (
	CodeInsufficientCredits  = "INSUFFICIENT_CREDITS"
	CodeAlreadyRefunded      = "ALREADY_REFUNDED"
	CodeIdempotencyKeyReused = "IDEMPOTENCY_KEY_REUSED"
	CodeIdempotencyKey       = "INVALID_IDEMPOTENCY_KEY"
	CodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	CodeServiceUnavailable   = "SERVICE_UNAVAILABLE"
	CodeSignatureFailed      = "SIGNATURE_VERIFICATION_FAILED"
	CodeValidation           = "VALIDATION_ERROR"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeNotFound             = "NOT_FOUND"
	CodeDuplicateGrant       = "DUPLICATE_GRANT"
	CodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	CodeInternal             = "INTERNAL_ERROR"
)

// APIError interface for custom error types
type APIError interface {
	error
	Status() int
	Code() string
}

// Error domain hatalarının HTTP karşılığı
type Error struct {
	StatusCode int
	ErrCode    string
	Message    string
	Details    map[string]interface{}
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Status() int { return e.StatusCode }
func (e *Error) Code() string { return e.ErrCode }

// New yeni API hatası oluşturur
func New(status int, code, message string) *Error {
	return &Error{StatusCode: status, ErrCode: code, Message: message}
}

// AuthError authentication hatası için custom error type
type AuthError struct {
	Message    string
	StatusCode int
}

func (e *AuthError) Error() string { return e.Message }
func (e *AuthError) Status() int { return e.StatusCode }
func (e *AuthError) Code() string { return CodeUnauthorized }

// RBACError authorization hatası için custom error type
type RBACError struct {
	Message    string
	StatusCode int
	Resource   string
	Action     string
}

func (e *RBACError) Error() string { return e.Message }
func (e *RBACError) Status() int { return e.StatusCode }
func (e *RBACError) Code() string { return CodeForbidden }

// ValidationError validation hatası için custom error type
type ValidationError struct {
	Message    string
	StatusCode int
	Field      string
	Value      interface{}
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Status() int { return e.StatusCode }
func (e *ValidationError) Code() string { return CodeValidation }

// FromDomain domain hatasını status/code çiftine eşler. Tanınmayan hatalar
// iç detay sızdırmadan 500 döner.
func FromDomain(err error) APIError {
	var apiErr APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}

	var insufficient *models.InsufficientCreditsError
	switch {
	case stderrors.As(err, &insufficient):
		return &Error{
			StatusCode: http.StatusPaymentRequired,
			ErrCode:    CodeInsufficientCredits,
			Message:    "Insufficient credits",
			Details: map[string]interface{}{
				"balance":  insufficient.Balance,
				"required": insufficient.Required,
			},
		}
	case stderrors.Is(err, models.ErrInsufficientCredits):
		return New(http.StatusPaymentRequired, CodeInsufficientCredits, "Insufficient credits")
	case stderrors.Is(err, models.ErrAlreadyRefunded):
		return New(http.StatusConflict, CodeAlreadyRefunded, "This operation has already been refunded")
	case stderrors.Is(err, models.ErrIdempotencyKeyReused):
		return New(http.StatusUnprocessableEntity, CodeIdempotencyKeyReused, "Idempotency-Key was already used with a different request")
	case stderrors.Is(err, models.ErrInvalidIdempotencyKey), stderrors.Is(err, models.ErrIdempotencyKeyMissing):
		return New(http.StatusBadRequest, CodeIdempotencyKey, err.Error())
	case stderrors.Is(err, models.ErrRateLimitExceeded):
		return New(http.StatusTooManyRequests, CodeRateLimitExceeded, "Too many requests. Please try again later.")
	case stderrors.Is(err, models.ErrIdempotencyUnavailable):
		return New(http.StatusServiceUnavailable, CodeServiceUnavailable, "Idempotency store temporarily unavailable. Please retry with the same Idempotency-Key.")
	case stderrors.Is(err, models.ErrSubscriptionPending):
		return New(http.StatusServiceUnavailable, CodeServiceUnavailable, "Subscription is not known yet. Please redeliver later.")
	case stderrors.Is(err, models.ErrCircuitOpen):
		return New(http.StatusServiceUnavailable, CodeServiceUnavailable, "Service temporarily unavailable. Please try again later.")
	case stderrors.Is(err, models.ErrSignatureVerification):
		return New(http.StatusBadRequest, CodeSignatureFailed, "Webhook signature verification failed")
	case stderrors.Is(err, models.ErrInvalidAmount),
		stderrors.Is(err, models.ErrUserRequired),
		stderrors.Is(err, models.ErrOperationIDRequired):
		return New(http.StatusBadRequest, CodeValidation, err.Error())
	case stderrors.Is(err, models.ErrDuplicateGrant):
		return New(http.StatusConflict, CodeDuplicateGrant, "Credits were already granted for this reference")
	default:
		return New(http.StatusInternalServerError, CodeInternal, "Internal server error")
	}
}
