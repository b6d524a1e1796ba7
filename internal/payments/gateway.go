package payments

import (
	"context"

	mollieapi "github.com/VictorAvelar/mollie-api-go/v4/mollie"

	billingmollie "motionmaker/billing/internal/mollie"
)

// Gateway is the narrow payment-gateway contract this core consumes: create
// a hosted payment, and fetch a payment's canonical status by id. The
// gateway's internal mechanics (checkout page, card processing) stay behind
// this boundary.
type Gateway interface {
	CreatePayment(ctx context.Context, params billingmollie.PaymentParams) (*mollieapi.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*mollieapi.Payment, error)
}
