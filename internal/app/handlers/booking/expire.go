package booking

import (
	"context"
	"log/slog"
	"time"

	"stayflow/internal/app/commands"
	"stayflow/internal/app/handlers/support"
	"stayflow/internal/app/outbox"
	"stayflow/internal/app/uow"
)

const expireSweepKey = "booking.expire_sweep"

// ExpireSweepCommand expires every pending payment whose window lapsed. Run
// periodically; also safe to run ad hoc.
type ExpireSweepCommand struct{}

func (c ExpireSweepCommand) Key() string { return expireSweepKey }

type ExpireSweepResult struct {
	Expired int `json:"expired"`
}

type ExpireSweepHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
}

func (h *ExpireSweepHandler) Handle(ctx context.Context, cmd ExpireSweepCommand) (*ExpireSweepResult, error) {
	unit, execCtx, cleanup, commit, err := support.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	now := time.Now().UTC()
	lapsed, err := unit.Transactions().ListPendingPaymentBefore(execCtx, now)
	if err != nil {
		return nil, err
	}
	expired := 0
	for _, tx := range lapsed {
		if err := tx.ExpirePayment(now); err != nil {
			continue
		}
		if err := unit.Transactions().Save(execCtx, tx); err != nil {
			return nil, err
		}
		evs := tx.PendingEvents()
		tx.ClearEvents()
		if err := outbox.RecordDomainEvents(execCtx, h.Outbox, h.Encoder, evs); err != nil {
			return nil, err
		}
		expired++
	}
	if err := commit(execCtx); err != nil {
		return nil, err
	}
	if h.Logger != nil && expired > 0 {
		h.Logger.Info("pending payments expired", "count", expired)
	}
	return &ExpireSweepResult{Expired: expired}, nil
}

var _ commands.Handler[ExpireSweepCommand, *ExpireSweepResult] = (*ExpireSweepHandler)(nil)
