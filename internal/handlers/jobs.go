package handlers

import (
	"context"
	"time"

	"motionmaker/billing/internal/payments"
	"motionmaker/billing/pkg/config"
	"motionmaker/billing/pkg/logging"
)

// JobManager handles background billing jobs
type JobManager struct {
	ledger     *payments.TransactionLedger
	reconciler *payments.Reconciler
	logger     logging.Logger
	interval   time.Duration
	batchSize  int
	stopCh     chan struct{}
}

// NewJobManager creates a new job manager
func NewJobManager(ledger *payments.TransactionLedger, reconciler *payments.Reconciler, log logging.Logger) *JobManager {
	intervalMinutes := config.GetEnvInt("CREDIT_REPAIR_INTERVAL_MINUTES", 10)
	batchSize := config.GetEnvInt("CREDIT_REPAIR_BATCH_SIZE", 50)

	return &JobManager{
		ledger:     ledger,
		reconciler: reconciler,
		logger:     log,
		interval:   time.Duration(intervalMinutes) * time.Minute,
		batchSize:  batchSize,
		stopCh:     make(chan struct{}),
	}
}

// Start begins all background jobs
func (jm *JobManager) Start(ctx context.Context) {
	jm.logger.Info("Starting billing job manager")

	go jm.runCreditRepair(ctx)
}

// Stop stops all background jobs
func (jm *JobManager) Stop() {
	jm.logger.Info("Stopping billing job manager")
	close(jm.stopCh)
}

// runCreditRepair periodically scans for paid transactions whose credit grant
// never landed and re-applies it. Closes the window left by a crash between
// the status transition and the credit grant.
func (jm *JobManager) runCreditRepair(ctx context.Context) {
	ticker := time.NewTicker(jm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-jm.stopCh:
			return
		case <-ticker.C:
			jm.repairOnce(ctx)
		}
	}
}

func (jm *JobManager) repairOnce(ctx context.Context) {
	txs, err := jm.ledger.ListPaidUnapplied(ctx, jm.batchSize)
	if err != nil {
		jm.logger.WithError(err).Error("Credit repair scan failed")
		return
	}
	if len(txs) == 0 {
		return
	}

	jm.logger.WithFields(logging.Fields{
		"count": len(txs),
	}).Warn("Found paid transactions with unapplied credits")

	repaired := 0
	for i := range txs {
		if err := jm.reconciler.Repair(ctx, &txs[i]); err != nil {
			jm.logger.WithError(err).WithFields(logging.Fields{
				"transaction_id":    txs[i].ID,
				"mollie_payment_id": txs[i].MolliePaymentID,
			}).Error("Failed to repair transaction")
			continue
		}
		repaired++
	}

	jm.logger.WithFields(logging.Fields{
		"repaired": repaired,
		"total":    len(txs),
	}).Info("Credit repair pass complete")
}
