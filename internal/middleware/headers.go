package middleware

// HTTP header isimleri
const (
	HeaderIdempotencyKey      = "Idempotency-Key"
	HeaderIdempotencyReplayed = "Idempotency-Replayed"
	HeaderRateLimitLimit      = "X-RateLimit-Limit"
	HeaderRateLimitRemaining  = "X-RateLimit-Remaining"
	HeaderRateLimitReset      = "X-RateLimit-Reset"
	HeaderRateLimitCategory   = "X-RateLimit-Category"
)
