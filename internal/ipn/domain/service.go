package domain

import (
	"context"
	"errors"
)

// Service processes one raw notification body end to end. The returned error
// describes why processing stopped; the HTTP layer acknowledges receipt
// regardless, because the sender retries anything but a success response.
type Service interface {
	Process(ctx context.Context, rawBody string, trustedLocal bool) error
}

var (
	ErrInvalidPayload             = errors.New("invalid_payload")
	ErrVerificationFailed         = errors.New("verification_failed")
	ErrPaymentNotCompleted        = errors.New("payment_not_completed")
	ErrMissingTransactionID       = errors.New("missing_transaction_id")
	ErrUnsupportedTransactionType = errors.New("unsupported_transaction_type")
	ErrUnsupportedCurrency        = errors.New("unsupported_currency")
	ErrReceiverMismatch           = errors.New("receiver_mismatch")
	ErrDuplicateNotification      = errors.New("duplicate_notification")
	ErrNoAdjustmentsCreated       = errors.New("no_adjustments_created")
)
