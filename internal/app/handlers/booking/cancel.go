package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"stayflow/internal/app/commands"
	"stayflow/internal/app/handlers/support"
	"stayflow/internal/app/middleware"
	"stayflow/internal/app/outbox"
	"stayflow/internal/app/policies"
	"stayflow/internal/app/uow"
	domaintx "stayflow/internal/domain/transaction"
)

const cancelKey = "booking.cancel"

type CancelCommand struct {
	TxID       string
	CustomerID string
	Reason     string
}

func (c CancelCommand) Key() string           { return cancelKey }
func (c CancelCommand) TransactionID() string { return c.TxID }

type CancelResult struct {
	TransactionID string `json:"transaction_id"`
	State         string `json:"state"`
}

type CancelHandler struct {
	UoWFactory uow.UoWFactory
	Notifier   policies.Notifier
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
}

func (h *CancelHandler) Handle(ctx context.Context, cmd CancelCommand) (*CancelResult, error) {
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
	if tx.CustomerID != cmd.CustomerID {
		return nil, ErrNotOwnedByCustomer
	}
	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = "customer-canceled"
	}
	if err := tx.Cancel(reason, time.Now().UTC()); err != nil {
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
		h.Notifier.Notify(ctx, "booking_canceled", string(tx.ID), map[string]any{"provider_id": tx.ProviderID, "reason": reason})
	}
	if h.Logger != nil {
		h.Logger.Info("booking canceled", "transaction_id", tx.ID, "reason", reason)
	}
	return &CancelResult{TransactionID: string(tx.ID), State: string(tx.State)}, nil
}

var _ commands.Handler[CancelCommand, *CancelResult] = (*CancelHandler)(nil)
var _ middleware.TransactionScoped = (*CancelCommand)(nil)
