package deposits

import (
	"context"
	"log/slog"
	"time"

	"stayflow/internal/app/commands"
	"stayflow/internal/app/handlers/support"
	"stayflow/internal/app/middleware"
	"stayflow/internal/app/outbox"
	"stayflow/internal/app/policies"
	"stayflow/internal/app/schedule"
	"stayflow/internal/app/uow"
	"stayflow/internal/domain/shared/fault"
	domaintx "stayflow/internal/domain/transaction"
)

const refundKey = "deposit.refund"

type RefundCommand struct {
	TxID        string
	RequestedBy string
}

func (c RefundCommand) Key() string           { return refundKey }
func (c RefundCommand) TransactionID() string { return c.TxID }

type RefundResult struct {
	TransactionID string `json:"transaction_id"`
	DepositStatus string `json:"deposit_status"`
	// RetryScheduled is set when the rail timed out and a single delayed
	// retry was queued; the deposit stays paid until it lands.
	RetryScheduled bool `json:"retry_scheduled,omitempty"`
}

type RefundHandler struct {
	UoWFactory uow.UoWFactory
	Card       policies.CardRail
	Scheduler  schedule.Scheduler
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
}

// Handle refunds a paid security deposit on the card rail for the transfer
// amount and marks it refunded.
func (h *RefundHandler) Handle(ctx context.Context, cmd RefundCommand) (*RefundResult, error) {
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
	if tx.Deposit.Status != domaintx.DepositPaid {
		return nil, domaintx.ErrDepositNotPaid
	}

	if err := h.Card.Refund(ctx, tx.Deposit.ChargeRef, tx.Deposit.TransferAmount); err != nil {
		if fault.Retryable(err) && h.Scheduler != nil {
			if schedErr := h.Scheduler.Schedule(ctx, "deposit.refund_retry", map[string]string{
				"transaction_id": string(tx.ID),
			}, time.Now().Add(5*time.Second)); schedErr == nil {
				if h.Logger != nil {
					h.Logger.Warn("deposit refund timed out, retry scheduled", "transaction_id", tx.ID)
				}
				return &RefundResult{TransactionID: string(tx.ID), DepositStatus: string(tx.Deposit.Status), RetryScheduled: true}, nil
			}
		}
		return nil, err
	}

	if err := tx.MarkDepositRefunded(time.Now().UTC()); err != nil {
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
		h.Logger.Info("security deposit refunded", "transaction_id", tx.ID, "amount", tx.Deposit.TransferAmount.Amount)
	}
	return &RefundResult{TransactionID: string(tx.ID), DepositStatus: string(tx.Deposit.Status)}, nil
}

var _ commands.Handler[RefundCommand, *RefundResult] = (*RefundHandler)(nil)
var _ middleware.TransactionScoped = (*RefundCommand)(nil)
