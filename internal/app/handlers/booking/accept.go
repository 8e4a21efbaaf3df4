package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"stayflow/internal/app/commands"
	"stayflow/internal/app/handlers/support"
	"stayflow/internal/app/middleware"
	"stayflow/internal/app/outbox"
	"stayflow/internal/app/policies"
	"stayflow/internal/app/uow"
	"stayflow/internal/domain/shared/fault"
	domaintx "stayflow/internal/domain/transaction"
)

const acceptKey = "booking.accept"

var (
	ErrNotOwnedByProvider = errors.New("booking: transaction not owned by provider")
	ErrNotOwnedByCustomer = errors.New("booking: transaction not owned by customer")
)

type AcceptCommand struct {
	TxID       string
	ProviderID string
}

func (c AcceptCommand) Key() string           { return acceptKey }
func (c AcceptCommand) TransactionID() string { return c.TxID }

type AcceptResult struct {
	TransactionID string `json:"transaction_id"`
	State         string `json:"state"`
	DepositStatus string `json:"deposit_status,omitempty"`
	// PayoutSetupRequired signals a paused accept: the provider must finish
	// payout onboarding, then retry. Not an error.
	PayoutSetupRequired bool `json:"payout_setup_required,omitempty"`
}

type AcceptHandler struct {
	UoWFactory uow.UoWFactory
	Card       policies.CardRail
	PayPal     policies.PayPalRail
	Verify     TokenRetryPolicy
	Notifier   policies.Notifier
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
}

// Handle drives ACCEPT: charge the security deposit (card rail only), capture
// a deferred PayPal authorization, advance the state, then notify. The
// deposit step finishes — success, pause, or definitive failure — before the
// state advances, so an observer of ACCEPTED can rely on the deposit outcome.
func (h *AcceptHandler) Handle(ctx context.Context, cmd AcceptCommand) (*AcceptResult, error) {
	unit, execCtx, cleanup, commit, err := support.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	tx, err := unit.Transactions().ByID(execCtx, domaintx.ID(cmd.TxID))
	if err != nil {
		return nil, err
	}
	if tx.ProviderID != cmd.ProviderID {
		return nil, ErrNotOwnedByProvider
	}
	if tx.State != domaintx.StatePaymentConfirmed {
		return nil, domaintx.ErrInvalidState
	}
	now := time.Now().UTC()

	if paused, err := h.chargeDeposit(execCtx, tx, now); err != nil {
		return nil, err
	} else if paused {
		if err := unit.Transactions().Save(execCtx, tx); err != nil {
			return nil, err
		}
		if err := h.recordEvents(execCtx, tx); err != nil {
			return nil, err
		}
		if err := commit(execCtx); err != nil {
			return nil, err
		}
		if h.Logger != nil {
			h.Logger.Info("accept paused pending payout setup", "transaction_id", tx.ID, "provider_id", tx.ProviderID)
		}
		return &AcceptResult{
			TransactionID:       string(tx.ID),
			State:               string(tx.State),
			DepositStatus:       string(tx.Deposit.Status),
			PayoutSetupRequired: true,
		}, nil
	}

	if err := h.capturePayPal(execCtx, tx); err != nil {
		return nil, err
	}

	if err := tx.Accept(now); err != nil {
		return nil, err
	}
	if err := unit.Transactions().Save(execCtx, tx); err != nil {
		return nil, err
	}
	if err := h.recordEvents(execCtx, tx); err != nil {
		return nil, err
	}
	if err := commit(execCtx); err != nil {
		return nil, err
	}

	if h.Notifier != nil {
		h.Notifier.Notify(ctx, "booking_accepted", string(tx.ID), map[string]any{"customer_id": tx.CustomerID})
		h.Notifier.Notify(ctx, "payout_details", string(tx.ID), map[string]any{
			"provider_id": tx.ProviderID,
			"payout":      tx.PayoutTotal,
		})
	}
	if h.Logger != nil {
		h.Logger.Info("booking accepted", "transaction_id", tx.ID, "provider_id", tx.ProviderID, "deposit_status", tx.Deposit.Status)
	}
	return &AcceptResult{TransactionID: string(tx.ID), State: string(tx.State), DepositStatus: string(tx.Deposit.Status)}, nil
}

// chargeDeposit runs the deposit step. Returns paused=true when the provider
// cannot receive payouts yet; any other failure aborts the accept and leaves
// the transaction unchanged. Deposits ride the card rail only: PayPal
// transactions carry no reusable instrument and skip the step.
func (h *AcceptHandler) chargeDeposit(ctx context.Context, tx *domaintx.Transaction, now time.Time) (bool, error) {
	if tx.Deposit.Status != domaintx.DepositPending {
		return false, nil
	}
	if tx.Authorization == nil || !tx.Authorization.SupportsDeposit() {
		return false, nil
	}
	if err := tx.BeginDepositCharge(); err != nil {
		return false, err
	}

	var chargeRef string
	err := h.Verify.Run(ctx, policies.ActionDepositCharge, func(token string) error {
		ref, err := h.Card.ChargeDeposit(ctx, policies.DepositCharge{
			TransactionID: string(tx.ID),
			CustomerRef:   tx.CustomerID,
			Amount:        tx.Deposit.DepositAmount,
			InstrumentRef: tx.Authorization.InstrumentRef,
			Key:           string(tx.ID) + "-deposit",
			Token:         token,
		})
		if err != nil {
			return err
		}
		chargeRef = ref
		return nil
	})
	if err != nil {
		tx.AbortDepositCharge()
		if fault.Is(err, fault.PayoutSetupRequired) {
			tx.SetPayoutsDisabled(now)
			return true, nil
		}
		// Deposit charges are never retried automatically; the provider
		// retries the accept manually.
		return false, err
	}
	return false, tx.MarkDepositPaid(chargeRef, now)
}

// capturePayPal converts a deferred PayPal authorization into a transfer.
// Capture happens only at acceptance so declined bookings never hold funds.
func (h *AcceptHandler) capturePayPal(ctx context.Context, tx *domaintx.Transaction) error {
	auth := tx.Authorization
	if auth == nil || auth.Rail != domaintx.RailPayPal || auth.Status != domaintx.AuthAuthorized {
		return nil
	}
	outcome, err := h.PayPal.Capture(ctx, auth.AuthorizationRef)
	if err != nil {
		return err
	}
	auth.Status = outcome.Status
	return nil
}

func (h *AcceptHandler) recordEvents(ctx context.Context, tx *domaintx.Transaction) error {
	evs := tx.PendingEvents()
	tx.ClearEvents()
	return outbox.RecordDomainEvents(ctx, h.Outbox, h.encoder(), evs)
}

func (h *AcceptHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

var _ commands.Handler[AcceptCommand, *AcceptResult] = (*AcceptHandler)(nil)
var _ middleware.TransactionScoped = (*AcceptCommand)(nil)
