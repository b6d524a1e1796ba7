package handlers

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"

	"motionmaker/billing/internal/mollie"
	"motionmaker/billing/internal/payments"
	"motionmaker/billing/pkg/logging"
)

var (
	db           *sql.DB
	logger       logging.Logger
	metrics      *BursarMetrics
	mollieClient *mollie.Client
	checkoutSvc  *payments.CheckoutService
	reconciler   *payments.Reconciler
	creditStore  *payments.CreditStore
	planCatalog  *payments.PlanCatalog
	ledger       *payments.TransactionLedger
	signupGrant  int64
)

// BursarMetrics holds all Prometheus metrics for Bursar
type BursarMetrics struct {
	WebhooksProcessed        *prometheus.CounterVec
	CreditsGranted           *prometheus.CounterVec
	RacesLost                prometheus.Counter
	WebhookSignatureFailures *prometheus.CounterVec
	CreditsConsumed          *prometheus.CounterVec
	CheckoutsCreated         *prometheus.CounterVec
	DBQueries                *prometheus.CounterVec
	DBDuration               *prometheus.HistogramVec
	DBConnections            *prometheus.GaugeVec
}

// Services bundles the billing services the handlers dispatch to
type Services struct {
	Mollie     *mollie.Client
	Checkout   *payments.CheckoutService
	Reconciler *payments.Reconciler
	Credits    *payments.CreditStore
	Plans      *payments.PlanCatalog
	Ledger     *payments.TransactionLedger
}

// Init initializes the handlers with database, logger, metrics and services
func Init(database *sql.DB, log logging.Logger, bursarMetrics *BursarMetrics, services Services, signupCredits int64) {
	db = database
	logger = log
	metrics = bursarMetrics
	mollieClient = services.Mollie
	checkoutSvc = services.Checkout
	reconciler = services.Reconciler
	creditStore = services.Credits
	planCatalog = services.Plans
	ledger = services.Ledger
	signupGrant = signupCredits
}
