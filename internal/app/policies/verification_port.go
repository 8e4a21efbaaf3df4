package policies

import "context"

// VerificationGate obtains a short-lived proof-of-human token scoped to a
// named action. An empty token with a nil error means the verification
// subsystem is not configured; callers proceed without the gate for
// operations that are already in an authenticated flow.
type VerificationGate interface {
	Verify(ctx context.Context, action string) (string, error)
}

// Verification action names. Distinct actions get distinct tokens so a token
// cannot be replayed across unrelated money-moving operations.
const (
	ActionCheckout      = "checkout_submit"
	ActionAcceptBooking = "accept_booking"
	ActionDepositCharge = "deposit_charge"
)
