package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"motionmaker/billing/pkg/logging"
	"motionmaker/billing/pkg/models"
)

// Billing period granted by a paid plan purchase.
const subscriptionPeriod = 30 * 24 * time.Hour

// ReconcilerMetrics holds the Prometheus metrics the reconciler reports.
// Nil metrics (or a nil struct) disable reporting, which keeps tests quiet.
type ReconcilerMetrics struct {
	WebhooksProcessed *prometheus.CounterVec // labels: outcome
	CreditsGranted    *prometheus.CounterVec // labels: source
	RacesLost         prometheus.Counter
}

// Reconciler converts a gateway notification into an exactly-once mutation
// of the ledger, the credit account and the subscription state. It is safe
// to invoke concurrently and redundantly for the same payment id: the
// conditional status transition arbitrates every race.
type Reconciler struct {
	gateway Gateway
	ledger  *TransactionLedger
	credits *CreditStore
	subs    *SubscriptionStore
	logger  logging.Logger
	metrics *ReconcilerMetrics
	now     func() time.Time
}

// NewReconciler creates a reconciler over the given stores
func NewReconciler(gateway Gateway, ledger *TransactionLedger, credits *CreditStore, subs *SubscriptionStore, logger logging.Logger, metrics *ReconcilerMetrics) *Reconciler {
	return &Reconciler{
		gateway: gateway,
		ledger:  ledger,
		credits: credits,
		subs:    subs,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Process handles one webhook delivery for the given gateway payment id.
//
// The stored transaction status is the idempotency guard: a transaction
// already in a terminal state means this delivery is a duplicate and no
// side effects are re-applied. For a pending transaction the move to a
// terminal state is a single conditional update; only the winner of that
// update applies the credit and subscription effects.
func (r *Reconciler) Process(ctx context.Context, molliePaymentID string) error {
	if molliePaymentID == "" {
		return ErrMissingPaymentID
	}

	// Never trust a status carried in the webhook body; the id is the only
	// input, the gateway's record is the only source of truth.
	payment, err := r.gateway.GetPayment(ctx, molliePaymentID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	tx, err := r.ledger.GetByMolliePaymentID(ctx, molliePaymentID)
	if err != nil {
		return err
	}

	if models.IsTerminalTransactionStatus(tx.Status) {
		r.logger.WithFields(logging.Fields{
			"mollie_payment_id": molliePaymentID,
			"status":            tx.Status,
		}).Debug("Duplicate webhook delivery for settled transaction, skipping")
		r.countOutcome("duplicate")
		return nil
	}

	gatewayStatus := strings.ToLower(payment.Status)
	terminal, ok := mapGatewayStatus(gatewayStatus)
	if !ok {
		r.countOutcome("unknown_status")
		return fmt.Errorf("%w: %q", ErrUnknownGatewayStatus, payment.Status)
	}
	if terminal == "" {
		// Gateway still reports the payment as in flight; nothing to apply.
		r.countOutcome("still_pending")
		return nil
	}

	won, err := r.ledger.TransitionFromPending(ctx, molliePaymentID, terminal)
	if err != nil {
		return err
	}
	if !won {
		// A concurrent delivery beat us to the transition and owns the side
		// effects. Expected under at-least-once delivery, not an error.
		r.logger.WithFields(logging.Fields{
			"mollie_payment_id": molliePaymentID,
			"terminal":          terminal,
		}).Info("Lost status race to concurrent delivery, skipping effects")
		if r.metrics != nil && r.metrics.RacesLost != nil {
			r.metrics.RacesLost.Inc()
		}
		r.countOutcome("race_lost")
		return nil
	}

	if terminal != models.TransactionPaid {
		r.logger.WithFields(logging.Fields{
			"mollie_payment_id": molliePaymentID,
			"status":            terminal,
		}).Info("Transaction settled without payment")
		r.countOutcome(terminal)
		return nil
	}

	if err := r.applyPaidEffects(ctx, tx, "webhook"); err != nil {
		// The transaction is paid but under-applied; the repair job will
		// find it via the missing credit_ledger entry, and the gateway's
		// redelivery retries it sooner.
		return err
	}

	r.countOutcome("paid")
	return nil
}

// applyPaidEffects grants the purchased credits and, for plan purchases,
// opens the new billing period. Credit application is keyed by transaction
// id, so re-running for the same transaction is a no-op.
func (r *Reconciler) applyPaidEffects(ctx context.Context, tx *models.PaymentTransaction, source string) error {
	if tx.CreditsPurchased > 0 {
		newBalance, applied, err := r.credits.Apply(ctx, tx.UserID, tx.ID, tx.CreditsPurchased, tx.Description)
		if err != nil {
			return fmt.Errorf("failed to apply credit effect: %w", err)
		}
		if applied {
			r.logger.WithFields(logging.Fields{
				"user_id":           tx.UserID,
				"mollie_payment_id": tx.MolliePaymentID,
				"credits":           tx.CreditsPurchased,
				"new_balance":       newBalance,
			}).Info("Credited purchase")
			if r.metrics != nil && r.metrics.CreditsGranted != nil {
				r.metrics.CreditsGranted.WithLabelValues(source).Add(float64(tx.CreditsPurchased))
			}
		}
	}

	if tx.PlanID != nil && *tx.PlanID != "" {
		start := r.now()
		if err := r.subs.Activate(ctx, tx.UserID, *tx.PlanID, start, start.Add(subscriptionPeriod)); err != nil {
			return fmt.Errorf("failed to activate subscription: %w", err)
		}
	}

	return nil
}

// Repair re-applies the credit effect for a paid transaction found by the
// repair scan. Shares the guarded path with Process, so a concurrent
// delivery applying the same transaction stays a no-op.
func (r *Reconciler) Repair(ctx context.Context, tx *models.PaymentTransaction) error {
	return r.applyPaidEffects(ctx, tx, "repair")
}

func (r *Reconciler) countOutcome(outcome string) {
	if r.metrics == nil || r.metrics.WebhooksProcessed == nil {
		return
	}
	r.metrics.WebhooksProcessed.WithLabelValues(outcome).Inc()
}

// mapGatewayStatus maps Mollie's payment status vocabulary onto the ledger's
// terminal states. An empty terminal with ok=true means the payment is still
// in flight. The strings must match the gateway's vocabulary bit-for-bit.
func mapGatewayStatus(status string) (terminal string, ok bool) {
	switch status {
	case "paid":
		return models.TransactionPaid, true
	case "canceled", "cancelled":
		return models.TransactionCancelled, true
	case "expired":
		return models.TransactionExpired, true
	case "failed":
		return models.TransactionFailed, true
	case "pending", "open", "authorized":
		return "", true
	default:
		return "", false
	}
}
