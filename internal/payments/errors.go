package payments

import "errors"

// Error taxonomy of the payment core. The lost compare-and-set race is
// deliberately NOT an error: a concurrent delivery already applied the
// effects, so the loser reports success.
var (
	// ErrInvalidPurchase means the purchase spec failed validation
	// (unknown/inactive plan, or non-positive credit quantity).
	ErrInvalidPurchase = errors.New("invalid purchase")

	// ErrMissingPaymentID means the webhook carried no payment id.
	ErrMissingPaymentID = errors.New("missing payment id")

	// ErrTransactionNotFound means no ledger row exists for the gateway
	// payment id. Retryable: the gateway may notify before our own insert
	// commits, and it will redeliver.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrUnknownGatewayStatus means the gateway reported a status outside
	// the consumed vocabulary; the transaction is left pending for later
	// reconciliation.
	ErrUnknownGatewayStatus = errors.New("unknown gateway status")

	// ErrInsufficientCredits means a consume would drive the balance
	// below zero; consumption fails closed.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrGatewayUnavailable wraps transient gateway failures; callers
	// surface 5xx so the gateway's retry mechanism redelivers.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)
