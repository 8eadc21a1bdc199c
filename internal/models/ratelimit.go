package models

import "time"

// RateLimitResult bir admission kararının sonucu
type RateLimitResult struct {
	Allowed      bool
	Remaining    int
	ResetSeconds int
	Limit        int
	Window       time.Duration
	Category     string
}

// RateWindow kontrol edilen pencere ve limiti
type RateWindow struct {
	Span  time.Duration
	Limit int
}
