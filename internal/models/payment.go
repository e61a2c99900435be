package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the settled outcome reported by the gateway.
type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// PaymentRecord is one append-only ledger row per settlement attempt.
// TransactionRef is the gateway transaction id and the idempotency key:
// the table carries a unique constraint on it, so a retried webhook for the
// same transaction inserts nothing.
type PaymentRecord struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	UserID         string        `json:"user_id" db:"user_id"`
	TransactionRef string        `json:"transaction_ref" db:"transaction_ref"`
	OrderRef       string        `json:"order_ref" db:"order_ref"`
	AmountCents    int64         `json:"amount_cents" db:"amount_cents"`
	Currency       string        `json:"currency" db:"currency"`
	Status         PaymentStatus `json:"status" db:"status"`
	Tier           Tier          `json:"tier" db:"tier"`
	BillingCycle   BillingCycle  `json:"billing_cycle" db:"billing_cycle"`
	PaymentMethod  string        `json:"payment_method" db:"payment_method"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}
