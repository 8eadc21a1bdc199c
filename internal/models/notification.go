package models

import "time"

// Notification türleri
const (
	NotificationCreditsAdded   = "credits_added"
	NotificationPaymentFailed  = "payment_failed"
	NotificationSubscriptionOK = "subscription_active"
)

// Notification kullanıcıya gösterilen bildirim
type Notification struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"user_id" db:"user_id"`
	Kind      string     `json:"kind" db:"kind"`
	Title     string     `json:"title" db:"title"`
	Body      string     `json:"body" db:"body"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty" db:"read_at"`
}
