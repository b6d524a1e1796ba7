package mollie

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/VictorAvelar/mollie-api-go/v4/mollie"

	"motionmaker/billing/pkg/logging"
)

// Client wraps the Mollie API operations bursar needs: creating a hosted
// one-off payment and fetching a payment's canonical status by id.
type Client struct {
	client        *mollie.Client
	webhookSecret string // For webhook signature verification (if enabled)
	logger        logging.Logger
}

// Config for creating a new Mollie client
type Config struct {
	APIKey        string // MOLLIE_API_KEY (live_xxx or test_xxx)
	WebhookSecret string // Optional: for webhook signature verification
	Logger        logging.Logger
}

// NewClient creates a new Mollie client
func NewClient(config Config) (*Client, error) {
	mollieConfig := mollie.NewAPITestingConfig(true) // Use testing mode for test keys
	if len(config.APIKey) > 5 && config.APIKey[:5] == "live_" {
		mollieConfig = mollie.NewAPIConfig(true) // Use live mode for live keys
	}

	client, err := mollie.NewClient(nil, mollieConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Mollie client: %w", err)
	}

	if err := client.WithAuthenticationValue(config.APIKey); err != nil {
		return nil, fmt.Errorf("failed to set Mollie API key: %w", err)
	}

	return &Client{
		client:        client,
		webhookSecret: config.WebhookSecret,
		logger:        config.Logger,
	}, nil
}

// HasWebhookSecret returns true when webhook signature verification is configured.
func (c *Client) HasWebhookSecret() bool {
	return c.webhookSecret != ""
}

// PaymentParams describes a hosted one-off payment. Metadata travels to the
// gateway and comes back on fetch, so the reconciler can recover the purchase
// context from the payment alone.
type PaymentParams struct {
	UserID      string
	AmountCents int64
	Currency    string
	Description string
	PlanID      string // set for plan purchases
	Credits     int64  // credits granted when the payment settles
	RedirectURL string // where the user lands after checkout
	WebhookURL  string // where Mollie reports status changes
}

// CreatePayment creates a hosted payment and returns the gateway's record,
// including the checkout URL the user is sent to.
func (c *Client) CreatePayment(ctx context.Context, params PaymentParams) (*mollie.Payment, error) {
	metadata := map[string]interface{}{
		"user_id": params.UserID,
	}
	if params.PlanID != "" {
		metadata["plan_id"] = params.PlanID
	}
	if params.Credits > 0 {
		metadata["credits"] = fmt.Sprintf("%d", params.Credits)
	}

	paymentParams := mollie.CreatePayment{
		Amount:      Amount(FormatCents(params.AmountCents), params.Currency),
		Description: params.Description,
		RedirectURL: params.RedirectURL,
		WebhookURL:  params.WebhookURL,
		Metadata:    metadata,
	}

	_, payment, err := c.client.Payments.Create(ctx, paymentParams, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Mollie payment: %w", err)
	}

	c.logger.WithFields(logging.Fields{
		"payment_id":   payment.ID,
		"user_id":      params.UserID,
		"amount_cents": params.AmountCents,
		"currency":     params.Currency,
	}).Info("Created Mollie payment")

	return payment, nil
}

// GetPayment retrieves a payment by ID
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*mollie.Payment, error) {
	_, payment, err := c.client.Payments.Get(ctx, paymentID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get Mollie payment: %w", err)
	}
	return payment, nil
}

// VerifyWebhook verifies the webhook signature (if webhook secret is configured)
// Mollie doesn't sign webhooks by default - they recommend IP allowlisting or
// fetching the payment from their API to verify authenticity.
// This method provides optional HMAC verification if configured.
func (c *Client) VerifyWebhook(payload []byte, signature string) bool {
	if c.webhookSecret == "" {
		// No secret configured, skip verification
		// Caller should verify by fetching from Mollie API
		return true
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

// CheckoutURL extracts the hosted checkout link from a payment, empty when
// the payment has no open checkout (e.g. already settled).
func CheckoutURL(payment *mollie.Payment) string {
	if payment == nil {
		return ""
	}
	return payment.Links.Checkout.Href
}

// FormatCents renders integer minor units as the 2-decimal major-unit string
// Mollie expects. Kept integer end to end so no rounding drift can occur.
func FormatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// Amount helper to create a Mollie amount
func Amount(value string, currency string) *mollie.Amount {
	return &mollie.Amount{
		Value:    value,
		Currency: currency,
	}
}
