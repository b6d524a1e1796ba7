package payments

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"motionmaker/billing/pkg/logging"
)

// SubscriptionStore updates plan assignment and billing period. It carries
// no idempotency guard of its own: it is only invoked from the reconciler's
// already-guarded path, and re-applying the same activation is harmless.
type SubscriptionStore struct {
	db     *sql.DB
	logger logging.Logger
}

// NewSubscriptionStore creates a subscription store backed by the given database
func NewSubscriptionStore(db *sql.DB, logger logging.Logger) *SubscriptionStore {
	return &SubscriptionStore{db: db, logger: logger}
}

// Activate assigns the plan and opens a new billing period
func (s *SubscriptionStore) Activate(ctx context.Context, userID, planID string, periodStart, periodEnd time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bursar.user_subscriptions
		SET plan_id = $1,
		    status = 'active',
		    current_period_start = $2,
		    current_period_end = $3,
		    updated_at = NOW()
		WHERE user_id = $4
	`, planID, periodStart, periodEnd, userID)
	if err != nil {
		return fmt.Errorf("failed to activate subscription: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("no subscription row for user %s", userID)
	}

	s.logger.WithFields(logging.Fields{
		"user_id":    userID,
		"plan_id":    planID,
		"period_end": periodEnd,
	}).Info("Activated subscription")

	return nil
}
