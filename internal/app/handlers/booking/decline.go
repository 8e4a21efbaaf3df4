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
	"stayflow/internal/app/schedule"
	"stayflow/internal/app/uow"
	"stayflow/internal/domain/shared/fault"
	domaintx "stayflow/internal/domain/transaction"
)

const declineKey = "booking.decline"

type DeclineCommand struct {
	TxID       string
	ProviderID string
	Reason     string
}

func (c DeclineCommand) Key() string           { return declineKey }
func (c DeclineCommand) TransactionID() string { return c.TxID }

type DeclineResult struct {
	TransactionID string `json:"transaction_id"`
	State         string `json:"state"`
}

type DeclineHandler struct {
	UoWFactory uow.UoWFactory
	PayPal     policies.PayPalRail
	Notifier   policies.Notifier
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Scheduler  schedule.Scheduler
	Logger     *slog.Logger
}

// Handle drives DECLINE. The transition commits first; voiding an outstanding
// PayPal authorization runs best-effort afterwards, since the hold releases
// eventually either way and the decline itself must not be blocked.
func (h *DeclineHandler) Handle(ctx context.Context, cmd DeclineCommand) (*DeclineResult, error) {
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

	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = "provider-declined"
	}
	now := time.Now().UTC()
	if err := tx.Decline(reason, now); err != nil {
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

	if tx.Authorization != nil && tx.Authorization.NeedsVoid() {
		h.voidAuthorization(ctx, tx)
	}

	if h.Notifier != nil {
		h.Notifier.Notify(ctx, "booking_declined", string(tx.ID), map[string]any{"customer_id": tx.CustomerID, "reason": reason})
	}
	if h.Logger != nil {
		h.Logger.Info("booking declined", "transaction_id", tx.ID, "provider_id", tx.ProviderID, "reason", reason)
	}
	return &DeclineResult{TransactionID: string(tx.ID), State: string(tx.State)}, nil
}

// voidAuthorization is the compensating action for an authorized, un-captured
// PayPal order. Failures never unwind the decline: a timeout gets a single
// delayed retry, anything else is flagged for manual reconciliation.
func (h *DeclineHandler) voidAuthorization(ctx context.Context, tx *domaintx.Transaction) {
	authRef := tx.Authorization.AuthorizationRef
	_, err := h.PayPal.Void(ctx, authRef)
	if err == nil {
		h.saveVoided(ctx, tx)
		return
	}
	if h.Logger != nil {
		h.Logger.Warn("compensating void failed", "transaction_id", tx.ID, "authorization_ref", authRef, "error", err)
	}
	if fault.Retryable(err) && h.Scheduler != nil {
		retryAt := time.Now().Add(5 * time.Second)
		if schedErr := h.Scheduler.Schedule(ctx, "paypal.void_retry", map[string]string{
			"transaction_id":    string(tx.ID),
			"authorization_ref": authRef,
		}, retryAt); schedErr == nil {
			return
		}
	}
	rec, encErr := h.encoder().Encode(domaintx.VoidFailed{
		TransactionID:    tx.ID,
		AuthorizationRef: authRef,
		Reason:           err.Error(),
		At:               time.Now().UTC(),
	})
	if encErr == nil && h.Outbox != nil {
		_ = h.Outbox.Add(ctx, rec)
		_ = h.Outbox.Flush(ctx)
	}
}

// saveVoided stores the released authorization in its own unit. Losing the
// write is tolerable: NeedsVoid stays true and a later void is a no-op at the
// rail.
func (h *DeclineHandler) saveVoided(ctx context.Context, tx *domaintx.Transaction) {
	tx.MarkAuthorizationVoided(time.Now().UTC())
	unit, execCtx, cleanup, commit, err := support.BeginUnit(ctx, h.UoWFactory)
	if err == nil {
		if cleanup != nil {
			defer cleanup()
		}
		if err = unit.Transactions().Save(execCtx, tx); err == nil {
			err = commit(execCtx)
		}
	}
	if err != nil && h.Logger != nil {
		h.Logger.Warn("voided authorization not persisted", "transaction_id", tx.ID, "error", err)
	}
}

func (h *DeclineHandler) recordEvents(ctx context.Context, tx *domaintx.Transaction) error {
	evs := tx.PendingEvents()
	tx.ClearEvents()
	return outbox.RecordDomainEvents(ctx, h.Outbox, h.encoder(), evs)
}

func (h *DeclineHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

var _ commands.Handler[DeclineCommand, *DeclineResult] = (*DeclineHandler)(nil)
var _ middleware.TransactionScoped = (*DeclineCommand)(nil)
