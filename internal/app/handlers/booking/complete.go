package booking

import (
	"context"
	"log/slog"
	"time"

	"stayflow/internal/app/commands"
	"stayflow/internal/app/handlers/support"
	"stayflow/internal/app/middleware"
	"stayflow/internal/app/outbox"
	"stayflow/internal/app/policies"
	"stayflow/internal/app/uow"
	domaintx "stayflow/internal/domain/transaction"
)

const completeKey = "booking.complete"

type CompleteCommand struct {
	TxID string
}

func (c CompleteCommand) Key() string           { return completeKey }
func (c CompleteCommand) TransactionID() string { return c.TxID }

type CompleteResult struct {
	TransactionID string `json:"transaction_id"`
	State         string `json:"state"`
	DepositStatus string `json:"deposit_status,omitempty"`
}

type CompleteHandler struct {
	UoWFactory uow.UoWFactory
	Notifier   policies.Notifier
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
}

// Handle closes out the rental. A paid deposit is deliberately left paid
// until an explicit refund or claim.
func (h *CompleteHandler) Handle(ctx context.Context, cmd CompleteCommand) (*CompleteResult, error) {
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
	if err := tx.Complete(time.Now().UTC()); err != nil {
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

	if h.Notifier != nil {
		h.Notifier.Notify(ctx, "booking_completed", string(tx.ID), nil)
	}
	if h.Logger != nil {
		h.Logger.Info("booking completed", "transaction_id", tx.ID, "deposit_status", tx.Deposit.Status)
	}
	return &CompleteResult{TransactionID: string(tx.ID), State: string(tx.State), DepositStatus: string(tx.Deposit.Status)}, nil
}

var _ commands.Handler[CompleteCommand, *CompleteResult] = (*CompleteHandler)(nil)
var _ middleware.TransactionScoped = (*CompleteCommand)(nil)
