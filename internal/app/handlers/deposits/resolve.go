package deposits

import (
	"context"
	"log/slog"
	"time"

	"stayflow/internal/app/commands"
	"stayflow/internal/app/handlers/support"
	"stayflow/internal/app/middleware"
	"stayflow/internal/app/outbox"
	"stayflow/internal/app/uow"
	"stayflow/internal/domain/shared/fault"
	domaintx "stayflow/internal/domain/transaction"
)

type ResolveClaimCommand struct {
	TxID       string
	ResolvedBy string
	// Upheld transfers the deposit to the provider; otherwise it is refunded
	// to the customer through the regular refund path.
	Upheld bool
}

func (c ResolveClaimCommand) Key() string           { return "deposit.resolve_claim" }
func (c ResolveClaimCommand) TransactionID() string { return c.TxID }

type ResolveClaimResult struct {
	TransactionID string `json:"transaction_id"`
	DepositStatus string `json:"deposit_status"`
}

// ResolveClaimHandler applies an operator's adjudication of a deposit claim.
// An upheld claim marks the deposit claimed; a rejected one falls through to
// the refund flow, which the caller dispatches separately.
type ResolveClaimHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
}

func (h *ResolveClaimHandler) Handle(ctx context.Context, cmd ResolveClaimCommand) (*ResolveClaimResult, error) {
	if cmd.ResolvedBy == "" {
		return nil, fault.New(fault.Validation, "resolver_required", "operator id is required for claim resolution")
	}
	if !cmd.Upheld {
		return nil, fault.New(fault.Validation, "claim_rejected", "rejected claims are settled by refunding the deposit")
	}

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
	if err := tx.MarkDepositClaimed(time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := unit.Transactions().Save(execCtx, tx); err != nil {
		return nil, err
	}
	evs := tx.PendingEvents()
	tx.ClearEvents()
	if err := outbox.RecordDomainEvents(execCtx, h.Outbox, h.Encoder, evs); err != nil {
		return nil, err
	}
	if err := commit(execCtx); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("deposit claim upheld", "transaction_id", tx.ID, "resolved_by", cmd.ResolvedBy)
	}
	return &ResolveClaimResult{TransactionID: string(tx.ID), DepositStatus: string(tx.Deposit.Status)}, nil
}

var _ commands.Handler[ResolveClaimCommand, *ResolveClaimResult] = (*ResolveClaimHandler)(nil)
var _ middleware.TransactionScoped = (*ResolveClaimCommand)(nil)
