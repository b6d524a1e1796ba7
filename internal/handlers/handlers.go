package handlers

import (
	"errors"
	"net/http"

	billingapi "motionmaker/billing/pkg/api/billing"
	"motionmaker/billing/pkg/ctxkeys"
	"motionmaker/billing/pkg/logging"
	"motionmaker/billing/pkg/middleware"

	"motionmaker/billing/internal/payments"
)

// Billing API Endpoints

// GetPlans returns the active subscription plans in display order
func GetPlans(c middleware.Context) {
	plans, err := planCatalog.ListActive(c.Request.Context())
	if err != nil {
		logger.WithError(err).Error("Failed to fetch subscription plans")
		c.JSON(http.StatusInternalServerError, billingapi.ErrorResponse{Error: "Failed to fetch plans"})
		return
	}

	c.JSON(http.StatusOK, billingapi.PlansResponse{Plans: plans})
}

// CreatePayment starts a plan purchase and returns the hosted checkout URL
func CreatePayment(c middleware.Context) {
	userID := c.GetString(string(ctxkeys.KeyUserID))
	if userID == "" {
		c.JSON(http.StatusBadRequest, billingapi.ErrorResponse{Error: "User context required"})
		return
	}

	var req billingapi.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, billingapi.ErrorResponse{Error: err.Error()})
		return
	}

	result, err := checkoutSvc.CreatePlanCheckout(c.Request.Context(), userID, req.PlanID)
	if err != nil {
		writeCheckoutError(c, err, "plan", req.PlanID)
		return
	}

	logger.WithFields(logging.Fields{
		"user_id":    userID,
		"plan_id":    req.PlanID,
		"payment_id": result.PaymentID,
	}).Info("Created plan checkout")
	recordCheckoutCreated("plan")

	c.JSON(http.StatusOK, billingapi.PaymentResponse{
		PaymentURL: result.PaymentURL,
		PaymentID:  result.PaymentID,
	})
}

// BuyCredits starts a raw credit purchase priced at the unit rate
func BuyCredits(c middleware.Context) {
	userID := c.GetString(string(ctxkeys.KeyUserID))
	if userID == "" {
		c.JSON(http.StatusBadRequest, billingapi.ErrorResponse{Error: "User context required"})
		return
	}

	var req billingapi.BuyCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, billingapi.ErrorResponse{Error: err.Error()})
		return
	}

	result, err := checkoutSvc.CreateCreditCheckout(c.Request.Context(), userID, req.Credits)
	if err != nil {
		writeCheckoutError(c, err, "credits", "")
		return
	}

	logger.WithFields(logging.Fields{
		"user_id":    userID,
		"credits":    req.Credits,
		"payment_id": result.PaymentID,
	}).Info("Created credit checkout")
	recordCheckoutCreated("credits")

	c.JSON(http.StatusOK, billingapi.PaymentResponse{
		PaymentURL: result.PaymentURL,
		PaymentID:  result.PaymentID,
	})
}

func recordCheckoutCreated(kind string) {
	if metrics == nil || metrics.CheckoutsCreated == nil {
		return
	}
	metrics.CheckoutsCreated.WithLabelValues(kind).Inc()
}

func writeCheckoutError(c middleware.Context, err error, kind, planID string) {
	switch {
	case errors.Is(err, payments.ErrInvalidPurchase):
		c.JSON(http.StatusBadRequest, billingapi.ErrorResponse{Error: err.Error()})
	case errors.Is(err, payments.ErrGatewayUnavailable):
		logger.WithError(err).WithFields(logging.Fields{
			"kind":    kind,
			"plan_id": planID,
		}).Error("Payment gateway unavailable during checkout")
		c.JSON(http.StatusBadGateway, billingapi.ErrorResponse{Error: "Payment provider unavailable"})
	default:
		logger.WithError(err).WithFields(logging.Fields{
			"kind":    kind,
			"plan_id": planID,
		}).Error("Failed to create checkout")
		c.JSON(http.StatusInternalServerError, billingapi.ErrorResponse{Error: "Failed to create payment"})
	}
}

// GetBillingStatus returns the caller's credit balance and plan state
func GetBillingStatus(c middleware.Context) {
	userID := c.GetString(string(ctxkeys.KeyUserID))
	if userID == "" {
		c.JSON(http.StatusBadRequest, billingapi.ErrorResponse{Error: "User context required"})
		return
	}

	sub, err := creditStore.Get(c.Request.Context(), userID)
	if err != nil {
		logger.WithError(err).WithFields(logging.Fields{
			"user_id": userID,
		}).Error("Failed to load billing status")
		c.JSON(http.StatusNotFound, billingapi.ErrorResponse{Error: "No billing account"})
		return
	}

	c.JSON(http.StatusOK, billingapi.BillingStatusResponse{
		UserID:             sub.UserID,
		PlanID:             sub.PlanID,
		Status:             sub.Status,
		CreditsRemaining:   sub.CreditsRemaining,
		CreditsTotal:       sub.CreditsTotal,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
	})
}

// Service-to-service endpoints

// ConsumeCredits debits credits from a user account, failing closed when the
// balance cannot cover the debit.
func ConsumeCredits(c middleware.Context) {
	var req billingapi.ConsumeCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, billingapi.ErrorResponse{Error: err.Error()})
		return
	}
	if req.Credits <= 0 {
		c.JSON(http.StatusBadRequest, billingapi.ErrorResponse{Error: "Credits must be positive"})
		return
	}

	remaining, err := creditStore.Consume(c.Request.Context(), req.UserID, req.Credits)
	if errors.Is(err, payments.ErrInsufficientCredits) {
		c.JSON(http.StatusPaymentRequired, billingapi.ErrorResponse{Error: "Insufficient credits"})
		return
	}
	if err != nil {
		logger.WithError(err).WithFields(logging.Fields{
			"user_id": req.UserID,
			"credits": req.Credits,
		}).Error("Failed to consume credits")
		c.JSON(http.StatusInternalServerError, billingapi.ErrorResponse{Error: "Failed to consume credits"})
		return
	}

	if metrics != nil && metrics.CreditsConsumed != nil {
		metrics.CreditsConsumed.WithLabelValues("api").Add(float64(req.Credits))
	}

	c.JSON(http.StatusOK, billingapi.ConsumeCreditsResponse{CreditsRemaining: remaining})
}

// EnsureAccount creates the credit account with the signup grant. Called by
// the auth service at signup; safe to retry.
func EnsureAccount(c middleware.Context) {
	var req billingapi.EnsureAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, billingapi.ErrorResponse{Error: err.Error()})
		return
	}

	if err := creditStore.EnsureAccount(c.Request.Context(), req.UserID, signupGrant); err != nil {
		logger.WithError(err).WithFields(logging.Fields{
			"user_id": req.UserID,
		}).Error("Failed to ensure billing account")
		c.JSON(http.StatusInternalServerError, billingapi.ErrorResponse{Error: "Failed to ensure account"})
		return
	}

	c.JSON(http.StatusOK, middleware.H{"status": "ok"})
}
