package models

import (
	"time"
)

// Payment transaction statuses. Pending is the only non-terminal state;
// the four terminal states mirror Mollie's payment vocabulary.
const (
	TransactionPending   = "pending"
	TransactionPaid      = "paid"
	TransactionCancelled = "cancelled"
	TransactionFailed    = "failed"
	TransactionExpired   = "expired"
)

// IsTerminalTransactionStatus reports whether a stored transaction status
// permits no further transitions.
func IsTerminalTransactionStatus(status string) bool {
	switch status {
	case TransactionPaid, TransactionCancelled, TransactionFailed, TransactionExpired:
		return true
	}
	return false
}

// PaymentTransaction is the ledger record for a single gateway payment.
// Rows are created in pending and moved exactly once to a terminal status;
// they are never deleted.
type PaymentTransaction struct {
	ID               string    `json:"id" db:"id"`
	UserID           string    `json:"user_id" db:"user_id"`
	MolliePaymentID  string    `json:"mollie_payment_id" db:"mollie_payment_id"`
	AmountCents      int64     `json:"amount_cents" db:"amount_cents"`
	Currency         string    `json:"currency" db:"currency"`
	Status           string    `json:"status" db:"status"`
	Description      string    `json:"description" db:"description"`
	CreditsPurchased int64     `json:"credits_purchased" db:"credits_purchased"`
	PlanID           *string   `json:"plan_id,omitempty" db:"plan_id"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// SubscriptionPlan is a purchasable plan from the catalogue
type SubscriptionPlan struct {
	ID              string    `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	PriceCents      int64     `json:"price_cents" db:"price_cents"`
	Currency        string    `json:"currency" db:"currency"`
	CreditsIncluded int64     `json:"credits_included" db:"credits_included"`
	IsActive        bool      `json:"is_active" db:"is_active"`
	SortOrder       int       `json:"sort_order" db:"sort_order"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// UserSubscription is the per-user credit account and plan assignment (1:1 with user)
type UserSubscription struct {
	ID                 string     `json:"id" db:"id"`
	UserID             string     `json:"user_id" db:"user_id"`
	PlanID             *string    `json:"plan_id,omitempty" db:"plan_id"`
	Status             string     `json:"status" db:"status"` // active, cancelled, expired, pending
	CreditsRemaining   int64      `json:"credits_remaining" db:"credits_remaining"`
	CreditsTotal       int64      `json:"credits_total" db:"credits_total"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty" db:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty" db:"current_period_end"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// CreditLedgerEntry records an applied credit effect, keyed by the payment
// transaction that caused it. Its existence is what makes "paid but not yet
// credited" detectable for the repair job.
type CreditLedgerEntry struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	TransactionID string    `json:"transaction_id" db:"transaction_id"`
	CreditsDelta  int64     `json:"credits_delta" db:"credits_delta"`
	BalanceAfter  int64     `json:"balance_after" db:"balance_after"`
	Description   string    `json:"description" db:"description"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
