package payments

import (
	"context"
	"fmt"

	"motionmaker/billing/internal/mollie"
	"motionmaker/billing/pkg/logging"
	"motionmaker/billing/pkg/models"
)

// CheckoutConfig carries the environment-derived parts of payment creation
type CheckoutConfig struct {
	RedirectURL    string // where the user lands after checkout
	WebhookURL     string // where the gateway reports status changes
	UnitPriceCents int64  // price of a single credit
	Currency       string // currency for raw credit purchases
}

// CheckoutService creates payment intents: one gateway payment plus one
// pending ledger row per call. No credit or subscription mutation happens
// here; that is the reconciler's job once the gateway reports the outcome.
type CheckoutService struct {
	gateway Gateway
	ledger  *TransactionLedger
	plans   *PlanCatalog
	config  CheckoutConfig
	logger  logging.Logger
}

// NewCheckoutService creates a checkout service
func NewCheckoutService(gateway Gateway, ledger *TransactionLedger, plans *PlanCatalog, config CheckoutConfig, logger logging.Logger) *CheckoutService {
	return &CheckoutService{
		gateway: gateway,
		ledger:  ledger,
		plans:   plans,
		config:  config,
		logger:  logger,
	}
}

// CheckoutResult is the checkout reference handed back to the caller
type CheckoutResult struct {
	PaymentURL string
	PaymentID  string
}

// CreatePlanCheckout starts a plan purchase
func (s *CheckoutService) CreatePlanCheckout(ctx context.Context, userID, planID string) (*CheckoutResult, error) {
	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, fmt.Errorf("%w: plan %s is not active", ErrInvalidPurchase, planID)
	}

	return s.createCheckout(ctx, checkoutSpec{
		userID:      userID,
		amountCents: plan.PriceCents,
		currency:    plan.Currency,
		description: fmt.Sprintf("%s Plan - MotionMaker", plan.Name),
		planID:      plan.ID,
		credits:     plan.CreditsIncluded,
	})
}

// CreateCreditCheckout starts a raw credit purchase priced at the unit rate
func (s *CheckoutService) CreateCreditCheckout(ctx context.Context, userID string, credits int64) (*CheckoutResult, error) {
	if credits <= 0 {
		return nil, fmt.Errorf("%w: credit quantity must be positive", ErrInvalidPurchase)
	}

	return s.createCheckout(ctx, checkoutSpec{
		userID:      userID,
		amountCents: credits * s.config.UnitPriceCents,
		currency:    s.config.Currency,
		description: fmt.Sprintf("%d Credits - MotionMaker", credits),
		credits:     credits,
	})
}

type checkoutSpec struct {
	userID      string
	amountCents int64
	currency    string
	description string
	planID      string
	credits     int64
}

func (s *CheckoutService) createCheckout(ctx context.Context, spec checkoutSpec) (*CheckoutResult, error) {
	payment, err := s.gateway.CreatePayment(ctx, mollie.PaymentParams{
		UserID:      spec.userID,
		AmountCents: spec.amountCents,
		Currency:    spec.currency,
		Description: spec.description,
		PlanID:      spec.planID,
		Credits:     spec.credits,
		RedirectURL: s.config.RedirectURL,
		WebhookURL:  s.config.WebhookURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	tx := &models.PaymentTransaction{
		UserID:           spec.userID,
		MolliePaymentID:  payment.ID,
		AmountCents:      spec.amountCents,
		Currency:         spec.currency,
		Description:      spec.description,
		CreditsPurchased: spec.credits,
	}
	if spec.planID != "" {
		tx.PlanID = &spec.planID
	}

	if err := s.ledger.InsertPending(ctx, tx); err != nil {
		// The gateway payment exists but has no ledger row; a webhook for it
		// will 404 until manual repair. Loud log so it can be found.
		s.logger.WithError(err).WithFields(logging.Fields{
			"mollie_payment_id": payment.ID,
			"user_id":           spec.userID,
		}).Error("Gateway payment created but ledger insert failed")
		return nil, err
	}

	return &CheckoutResult{
		PaymentURL: mollie.CheckoutURL(payment),
		PaymentID:  payment.ID,
	}, nil
}
