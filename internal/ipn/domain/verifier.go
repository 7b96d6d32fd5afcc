package domain

import (
	"context"
	"errors"
)

// Verifier confirms a raw notification body with the payment processor's
// verification endpoint.
type Verifier interface {
	Verify(ctx context.Context, rawBody string) error
}

var (
	// ErrVerificationRejected means the authority answered with anything
	// but the success token.
	ErrVerificationRejected = errors.New("verification_rejected")
	// ErrVerificationUnavailable means the round-trip itself failed.
	ErrVerificationUnavailable = errors.New("verification_unavailable")
)
