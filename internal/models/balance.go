package models

import "time"

// CreditAccount kullanıcının kredi bakiyesi
type CreditAccount struct {
	UserID         string    `json:"user_id" db:"user_id"`
	Balance        int64     `json:"balance" db:"balance"`
	BonusBalance   int64     `json:"bonus_balance" db:"bonus_balance"`
	LifetimeEarned int64     `json:"lifetime_earned" db:"lifetime_earned"`
	LifetimeSpent  int64     `json:"lifetime_spent" db:"lifetime_spent"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// EmptyAccount henüz hiç işlem görmemiş kullanıcı için sıfır bakiye
func EmptyAccount(userID string) *CreditAccount {
	return &CreditAccount{UserID: userID}
}

// CreditCheck check aksiyonunun sonucu
type CreditCheck struct {
	HasEnough bool  `json:"has_enough"`
	Balance   int64 `json:"balance"`
	Required  int64 `json:"required"`
}
