package models

import "time"

// Transaction tipleri
const (
	TxTypePurchase  = "purchase"
	TxTypeDeduction = "deduction"
	TxTypeRefund    = "refund"
	TxTypeRenewal   = "renewal"
)

// Limits
const (
	MinCreditAmount int64 = 1
	MaxCreditAmount int64 = 1_000_000
)

// CreditTransaction ledger'daki tek bir satır. Append-only.
type CreditTransaction struct {
	ID           int64     `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	Amount       int64     `json:"amount" db:"amount"` // deduction'da negatif
	BalanceAfter int64     `json:"balance_after" db:"balance_after"`
	Type         string    `json:"type" db:"type"`
	SourceApp    string    `json:"source_app,omitempty" db:"source_app"`
	SourceAction string    `json:"source_action,omitempty" db:"source_action"`
	OperationID  string    `json:"operation_id,omitempty" db:"operation_id"`
	Reason       string    `json:"reason,omitempty" db:"reason"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// DeductRequest kredi düşme isteği
type DeductRequest struct {
	UserID      string
	Amount      int64
	AppID       string
	OperationID string
	Reason      string
}

// AddRequest kredi ekleme isteği. ReferenceID doluysa aynı referansla
// ikinci bir ekleme ErrDuplicateGrant döner.
type AddRequest struct {
	UserID      string
	Amount      int64
	Source      string
	ReferenceID string
	Reason      string
	// Type boşsa purchase yazılır
	Type string
}

// RefundRequest iade isteği
type RefundRequest struct {
	UserID      string
	Amount      int64
	OperationID string
	Reason      string
}

// LedgerResult mutasyon sonrası dönen özet
type LedgerResult struct {
	Transaction *CreditTransaction `json:"transaction"`
	NewBalance  int64              `json:"new_balance"`
}

// ValidAmount kredi miktarının izin verilen aralıkta olup olmadığını söyler
func ValidAmount(amount int64) bool {
	return amount >= MinCreditAmount && amount <= MaxCreditAmount
}
