package booking

import (
	"context"
	"log/slog"

	"stayflow/internal/app/policies"
	"stayflow/internal/domain/shared/fault"
)

// TokenRetryPolicy runs a money-moving call with a verification token and,
// when the call fails only because the token was missing or invalid, retries
// exactly once without one. Verification is a fraud deterrent here, not a
// hard gate: the surrounding transition is already legitimate.
type TokenRetryPolicy struct {
	Gate   policies.VerificationGate
	Logger *slog.Logger
}

// Run obtains a token for the action and invokes do. A gate outage degrades
// to an empty token with a warning; it never blocks the call.
func (p TokenRetryPolicy) Run(ctx context.Context, action string, do func(token string) error) error {
	token := ""
	if p.Gate != nil {
		var err error
		token, err = p.Gate.Verify(ctx, action)
		if err != nil {
			if p.Logger != nil {
				p.Logger.Warn("verification unavailable, proceeding without token", "action", action, "error", err)
			}
			token = ""
		}
	}

	err := do(token)
	if err == nil {
		return nil
	}
	if fault.Is(err, fault.VerificationRequired) {
		if p.Logger != nil {
			p.Logger.Warn("verification token rejected, retrying once without token", "action", action)
		}
		return do("")
	}
	return err
}
