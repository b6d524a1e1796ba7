package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"motionmaker/billing/pkg/logging"
	"motionmaker/billing/pkg/models"
)

// TransactionLedger is the authoritative store of payment transactions.
// The status column is the single point of mutual exclusion for the whole
// reconciliation core: all credit and subscription effects are gated behind
// winning the conditional update on it.
type TransactionLedger struct {
	db     *sql.DB
	logger logging.Logger
}

// NewTransactionLedger creates a ledger backed by the given database
func NewTransactionLedger(db *sql.DB, logger logging.Logger) *TransactionLedger {
	return &TransactionLedger{db: db, logger: logger}
}

// InsertPending records a freshly created gateway payment. Exactly one row
// per gateway payment; the unique index on mollie_payment_id enforces it.
func (l *TransactionLedger) InsertPending(ctx context.Context, tx *models.PaymentTransaction) error {
	err := l.db.QueryRowContext(ctx, `
		INSERT INTO bursar.payment_transactions (
			user_id, mollie_payment_id, amount_cents, currency, status,
			description, credits_purchased, plan_id
		) VALUES ($1, $2, $3, $4, 'pending', $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, tx.UserID, tx.MolliePaymentID, tx.AmountCents, tx.Currency,
		tx.Description, tx.CreditsPurchased, tx.PlanID).
		Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert pending transaction: %w", err)
	}
	tx.Status = models.TransactionPending
	return nil
}

// GetByMolliePaymentID looks a transaction up by its gateway id, the
// idempotency key for reconciliation.
func (l *TransactionLedger) GetByMolliePaymentID(ctx context.Context, molliePaymentID string) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	err := l.db.QueryRowContext(ctx, `
		SELECT id, user_id, mollie_payment_id, amount_cents, currency, status,
		       description, credits_purchased, plan_id, created_at, updated_at
		FROM bursar.payment_transactions
		WHERE mollie_payment_id = $1
	`, molliePaymentID).Scan(
		&tx.ID, &tx.UserID, &tx.MolliePaymentID, &tx.AmountCents, &tx.Currency,
		&tx.Status, &tx.Description, &tx.CreditsPurchased, &tx.PlanID,
		&tx.CreatedAt, &tx.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lookup transaction: %w", err)
	}
	return &tx, nil
}

// TransitionFromPending moves a transaction to a terminal status with a
// single conditional update guarded by the prior status. Returns false when
// the row was no longer pending: a concurrent delivery won the race and this
// caller must skip all side effects.
func (l *TransactionLedger) TransitionFromPending(ctx context.Context, molliePaymentID, terminal string) (bool, error) {
	if !models.IsTerminalTransactionStatus(terminal) {
		return false, fmt.Errorf("refusing transition to non-terminal status %q", terminal)
	}

	res, err := l.db.ExecContext(ctx, `
		UPDATE bursar.payment_transactions
		SET status = $1, updated_at = NOW()
		WHERE mollie_payment_id = $2 AND status = 'pending'
	`, terminal, molliePaymentID)
	if err != nil {
		return false, fmt.Errorf("failed to transition transaction: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows == 1, nil
}

// ListPaidUnapplied returns paid transactions whose credit effect never
// landed in the credit ledger: the detectable half-applied state left behind
// when the process dies between the status transition and the credit grant.
// A short grace window keeps in-flight reconciliations out of the scan.
func (l *TransactionLedger) ListPaidUnapplied(ctx context.Context, limit int) ([]models.PaymentTransaction, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT t.id, t.user_id, t.mollie_payment_id, t.amount_cents, t.currency,
		       t.status, t.description, t.credits_purchased, t.plan_id,
		       t.created_at, t.updated_at
		FROM bursar.payment_transactions t
		WHERE t.status = 'paid'
		  AND t.credits_purchased > 0
		  AND t.updated_at < NOW() - INTERVAL '5 minutes'
		  AND NOT EXISTS (
		      SELECT 1 FROM bursar.credit_ledger cl WHERE cl.transaction_id = t.id
		  )
		ORDER BY t.updated_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for unapplied transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.PaymentTransaction
	for rows.Next() {
		var tx models.PaymentTransaction
		if err := rows.Scan(
			&tx.ID, &tx.UserID, &tx.MolliePaymentID, &tx.AmountCents, &tx.Currency,
			&tx.Status, &tx.Description, &tx.CreditsPurchased, &tx.PlanID,
			&tx.CreatedAt, &tx.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
