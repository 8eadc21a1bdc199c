package models

import "time"

// Subscription durumları
const (
	SubscriptionNone     = ""
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// Providers
const (
	ProviderStripe = "stripe"
	ProviderPayPal = "paypal"
)

// Subscription provider tarafındaki aboneliğin yerel kopyası
type Subscription struct {
	ID                     int64      `json:"id" db:"id"`
	Provider               string     `json:"provider" db:"provider"`
	ProviderSubscriptionID string     `json:"provider_subscription_id" db:"provider_subscription_id"`
	UserID                 string     `json:"user_id" db:"user_id"`
	PlanID                 string     `json:"plan_id" db:"plan_id"`
	Status                 string     `json:"status" db:"status"`
	CurrentPeriodEnd       *time.Time `json:"current_period_end,omitempty" db:"current_period_end"`
	UpdatedAt              time.Time  `json:"updated_at" db:"updated_at"`
}

var subscriptionTransitions = map[string][]string{
	SubscriptionNone:    {SubscriptionActive, SubscriptionPastDue, SubscriptionCanceled},
	SubscriptionActive:  {SubscriptionActive, SubscriptionPastDue, SubscriptionCanceled},
	SubscriptionPastDue: {SubscriptionActive, SubscriptionPastDue, SubscriptionCanceled},
	// canceled terminal
	SubscriptionCanceled: {SubscriptionCanceled},
}

// CanTransition from -> to geçişine izin var mı
func CanTransition(from, to string) bool {
	for _, allowed := range subscriptionTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
