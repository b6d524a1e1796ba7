// Package billing defines the request/response payloads of the bursar HTTP API.
package billing

import (
	"time"

	"motionmaker/billing/pkg/models"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreatePaymentRequest starts a plan purchase
type CreatePaymentRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

// BuyCreditsRequest starts a raw credit purchase
type BuyCreditsRequest struct {
	Credits int64 `json:"credits" binding:"required"`
}

// PaymentResponse returns the hosted checkout reference
type PaymentResponse struct {
	PaymentURL string `json:"payment_url"`
	PaymentID  string `json:"payment_id"`
}

// WebhookRequest is the body Mollie posts to the webhook endpoint.
// Only the id is meaningful; status claims in the body are never trusted.
type WebhookRequest struct {
	ID string `json:"id"`
}

// PlansResponse lists the active subscription plans
type PlansResponse struct {
	Plans []models.SubscriptionPlan `json:"plans"`
}

// BillingStatusResponse reports a user's credit balance and plan state
type BillingStatusResponse struct {
	UserID             string     `json:"user_id"`
	PlanID             *string    `json:"plan_id,omitempty"`
	Status             string     `json:"status"`
	CreditsRemaining   int64      `json:"credits_remaining"`
	CreditsTotal       int64      `json:"credits_total"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
}

// ConsumeCreditsRequest debits credits from a user account (service-to-service)
type ConsumeCreditsRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	Credits int64  `json:"credits"`
}

// ConsumeCreditsResponse reports the balance after a successful debit
type ConsumeCreditsResponse struct {
	CreditsRemaining int64 `json:"credits_remaining"`
}

// EnsureAccountRequest creates a credit account with the signup grant
// (service-to-service, called by the auth service at signup)
type EnsureAccountRequest struct {
	UserID string `json:"user_id" binding:"required"`
}
