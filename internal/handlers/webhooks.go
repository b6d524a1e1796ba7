package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	billingapi "motionmaker/billing/pkg/api/billing"
	"motionmaker/billing/pkg/logging"
	"motionmaker/billing/pkg/middleware"

	"motionmaker/billing/internal/payments"
)

const webhookTimeout = 15 * time.Second

// HandleMollieWebhook processes a payment status notification from Mollie.
// The body carries only the payment id; the current status is always fetched
// back from the Mollie API. Duplicate and concurrent deliveries for the same
// payment are normal and answered with 200.
func HandleMollieWebhook(c middleware.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, billingapi.ErrorResponse{Error: "Invalid payload"})
		return
	}

	if mollieClient != nil && mollieClient.HasWebhookSecret() {
		signature := c.GetHeader("X-Mollie-Signature")
		if signature == "" || !mollieClient.VerifyWebhook(body, signature) {
			logger.Warn("Mollie webhook signature verification failed")
			recordWebhookSignatureFailure("mollie")
			c.JSON(http.StatusUnauthorized, billingapi.ErrorResponse{Error: "Invalid signature"})
			return
		}
	}

	paymentID := parseWebhookPaymentID(body)

	ctx, cancel := context.WithTimeout(c.Request.Context(), webhookTimeout)
	defer cancel()

	switch err := reconciler.Process(ctx, paymentID); {
	case err == nil:
		c.JSON(http.StatusOK, middleware.H{"status": "ok"})
	case errors.Is(err, payments.ErrMissingPaymentID):
		c.JSON(http.StatusBadRequest, billingapi.ErrorResponse{Error: "Missing payment id"})
	case errors.Is(err, payments.ErrTransactionNotFound):
		logger.WithFields(logging.Fields{
			"mollie_payment_id": paymentID,
		}).Warn("Webhook for unknown payment id")
		c.JSON(http.StatusNotFound, billingapi.ErrorResponse{Error: "Unknown payment"})
	case errors.Is(err, payments.ErrGatewayUnavailable):
		// Non-2xx makes Mollie redeliver once the gateway is reachable again.
		logger.WithError(err).Error("Mollie unreachable during webhook processing")
		c.JSON(http.StatusBadGateway, billingapi.ErrorResponse{Error: "Payment provider unavailable"})
	default:
		logger.WithError(err).WithFields(logging.Fields{
			"mollie_payment_id": paymentID,
		}).Error("Failed to process Mollie webhook")
		c.JSON(http.StatusInternalServerError, billingapi.ErrorResponse{Error: "Failed to process webhook"})
	}
}

// parseWebhookPaymentID extracts the payment id from a webhook body. Mollie
// posts form-encoded id=tr_xxx; JSON bodies are accepted as well.
func parseWebhookPaymentID(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var payload billingapi.WebhookRequest
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return ""
		}
		return payload.ID
	}

	values, err := url.ParseQuery(string(trimmed))
	if err != nil {
		return ""
	}
	return values.Get("id")
}

func recordWebhookSignatureFailure(provider string) {
	if metrics == nil || metrics.WebhookSignatureFailures == nil {
		return
	}
	metrics.WebhookSignatureFailures.WithLabelValues(provider).Inc()
}
