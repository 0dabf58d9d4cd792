package services

import (
	"context"

	"github.com/poofware/completions-service/internal/constants"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/transfer"
)

// PaymentProcessor abstracts the external transfer capability so payout
// logic can be exercised without hitting Stripe.
type PaymentProcessor interface {
	CreateTransfer(ctx context.Context, amountCents int64, destinationAccountID string, metadata map[string]string, idempotencyKey string) (string, error)
}

type stripeProcessor struct{}

// NewStripeProcessor sets the global Stripe key and returns a processor
// backed by platform-to-connect transfers.
func NewStripeProcessor(apiKey string) PaymentProcessor {
	stripe.Key = apiKey
	return &stripeProcessor{}
}

func (p *stripeProcessor) CreateTransfer(ctx context.Context, amountCents int64, destinationAccountID string, metadata map[string]string, idempotencyKey string) (string, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Destination: stripe.String(destinationAccountID),
		Metadata:    metadata,
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	t, err := transfer.New(params)
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

// TransferFailureReason maps a transfer error to the reason string stored on
// the payout row. Stripe error codes are kept verbatim.
func TransferFailureReason(err error) string {
	if stripeErr, ok := err.(*stripe.Error); ok && stripeErr.Code != "" {
		return string(stripeErr.Code)
	}
	return constants.ReasonUnknownStripeTransferError
}

// IsFailureRecoverable reports whether a failure is transient enough to
// retry automatically, and whether it needs action from the worker.
func IsFailureRecoverable(reason string) (isSystemRecoverable bool, requiresUserAction bool) {
	switch reason {
	// Failures requiring USER ACTION (not system-recoverable).
	case string(stripe.ErrorCodeAccountInvalid),
		string(stripe.ErrorCodePayoutsNotAllowed),
		string(stripe.ErrorCodeInsufficientFunds),
		constants.ReasonMissingStripeConnectID,
		constants.ReasonWorkerNotPayoutEligible:
		return false, true

	// Transient or platform-side failures.
	case string(stripe.ErrorCodeBalanceInsufficient),
		string(stripe.ErrorCodeRateLimit),
		constants.ReasonUnknownStripeTransferError:
		return true, false

	// Unknown reasons are treated as final and not the worker's fault.
	default:
		return false, false
	}
}
