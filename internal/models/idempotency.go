package models

import "time"

// IdempotencyRecord bir idempotency key için saklanan yanıt
type IdempotencyRecord struct {
	Key            string    `db:"idempotency_key"`
	OperationType  string    `db:"operation_type"`
	RequestHash    string    `db:"request_hash"`
	ResponseStatus int       `db:"response_status"`
	ResponseBody   []byte    `db:"response_body"`
	CreatedAt      time.Time `db:"created_at"`
	ExpiresAt      time.Time `db:"expires_at"`
}

// Expired kayıt süresi dolmuş mu
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// CachedResponse tekrar oynatılacak yanıt
type CachedResponse struct {
	Status int
	Body   []byte
}

// IdempotencyResult check sonucu
type IdempotencyResult struct {
	Exists   bool
	Response *CachedResponse
}
