package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"motionmaker/billing/pkg/logging"
	"motionmaker/billing/pkg/models"
)

// CreditStore mutates per-user credit balances. Every mutation is a single
// guarded statement (or a short transaction with the guard inside), never a
// read-then-write pair, so concurrent calls for the same user serialize in
// the database.
type CreditStore struct {
	db     *sql.DB
	logger logging.Logger
}

// NewCreditStore creates a credit store backed by the given database
func NewCreditStore(db *sql.DB, logger logging.Logger) *CreditStore {
	return &CreditStore{db: db, logger: logger}
}

// Apply grants credits for a paid transaction, at most once per transaction
// id. The credit_ledger insert is the idempotency gate: when the entry
// already exists the balance is left untouched and applied=false is returned.
func (s *CreditStore) Apply(ctx context.Context, userID, transactionID string, delta int64, description string) (newBalance int64, applied bool, err error) {
	if delta <= 0 {
		return 0, false, fmt.Errorf("credit delta must be positive, got %d", delta)
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer dbTx.Rollback() //nolint:errcheck // rollback is best-effort

	err = dbTx.QueryRowContext(ctx, `
		UPDATE bursar.user_subscriptions
		SET credits_remaining = credits_remaining + $1,
		    credits_total = credits_total + $1,
		    updated_at = NOW()
		WHERE user_id = $2
		RETURNING credits_remaining
	`, delta, userID).Scan(&newBalance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("no credit account for user %s", userID)
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to apply credit: %w", err)
	}

	res, err := dbTx.ExecContext(ctx, `
		INSERT INTO bursar.credit_ledger (user_id, transaction_id, credits_delta, balance_after, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (transaction_id) DO NOTHING
	`, userID, transactionID, delta, newBalance, description)
	if err != nil {
		return 0, false, fmt.Errorf("failed to record credit ledger entry: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if inserted == 0 {
		// Already applied for this transaction id; the rollback on return
		// discards the balance update above.
		return 0, false, nil
	}

	if err := dbTx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit credit grant: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"user_id":        userID,
		"transaction_id": transactionID,
		"credits_delta":  delta,
		"new_balance":    newBalance,
	}).Info("Applied credit grant")

	return newBalance, true, nil
}

// Consume debits credits from a user's balance. The availability guard is in
// the statement itself so the balance can never go negative; a zero-row
// update means insufficient credits (or no account) and fails closed.
func (s *CreditStore) Consume(ctx context.Context, userID string, credits int64) (int64, error) {
	if credits <= 0 {
		return 0, fmt.Errorf("consume quantity must be positive, got %d", credits)
	}

	var remaining int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE bursar.user_subscriptions
		SET credits_remaining = credits_remaining - $1,
		    updated_at = NOW()
		WHERE user_id = $2 AND credits_remaining >= $1
		RETURNING credits_remaining
	`, credits, userID).Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInsufficientCredits
	}
	if err != nil {
		return 0, fmt.Errorf("failed to consume credits: %w", err)
	}
	return remaining, nil
}

// EnsureAccount creates the 1:1 credit account with the signup grant.
// Safe to call repeatedly; an existing account is left untouched.
func (s *CreditStore) EnsureAccount(ctx context.Context, userID string, grant int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bursar.user_subscriptions (user_id, status, credits_remaining, credits_total)
		VALUES ($1, 'pending', $2, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, grant)
	if err != nil {
		return fmt.Errorf("failed to ensure credit account: %w", err)
	}
	return nil
}

// Get returns a user's credit account and subscription state
func (s *CreditStore) Get(ctx context.Context, userID string) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, plan_id, status, credits_remaining, credits_total,
		       current_period_start, current_period_end, created_at, updated_at
		FROM bursar.user_subscriptions
		WHERE user_id = $1
	`, userID).Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &sub.Status,
		&sub.CreditsRemaining, &sub.CreditsTotal,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd,
		&sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no credit account for user %s", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credit account: %w", err)
	}
	return &sub, nil
}
