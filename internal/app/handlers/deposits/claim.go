package deposits

import (
	"context"
	"io"
	"log/slog"
	"time"

	"stayflow/internal/app/commands"
	"stayflow/internal/app/handlers/support"
	"stayflow/internal/app/middleware"
	"stayflow/internal/app/outbox"
	"stayflow/internal/app/policies"
	"stayflow/internal/app/uow"
	"stayflow/internal/domain/shared/events"
	"stayflow/internal/domain/shared/fault"
	domaintx "stayflow/internal/domain/transaction"
)

type RequestClaimCommand struct {
	TxID        string
	RequestedBy string
	Filename    string
	ContentType string
	Size        int64
	Evidence    io.Reader
}

func (c RequestClaimCommand) Key() string           { return "deposit.request_claim" }
func (c RequestClaimCommand) TransactionID() string { return c.TxID }

type RequestClaimResult struct {
	TransactionID string `json:"transaction_id"`
	EvidenceRef   string `json:"evidence_ref,omitempty"`
}

// RequestClaimHandler records a provider's claim against a paid deposit and
// stores the supporting evidence. It does not move money; adjudication and
// the subsequent MarkClaimed happen out of band.
type RequestClaimHandler struct {
	UoWFactory uow.UoWFactory
	Evidence   policies.EvidenceStore
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
}

func (h *RequestClaimHandler) Handle(ctx context.Context, cmd RequestClaimCommand) (*RequestClaimResult, error) {
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
	if tx.ProviderID != cmd.RequestedBy {
		return nil, fault.New(fault.Validation, "not_claim_owner", "only the booking provider may claim the deposit")
	}
	if tx.Deposit.Status != domaintx.DepositPaid {
		return nil, domaintx.ErrDepositNotPaid
	}

	var evidenceRef string
	if cmd.Evidence != nil && h.Evidence != nil {
		evidenceRef, err = h.Evidence.Put(ctx, string(tx.ID), cmd.Filename, cmd.ContentType, cmd.Size, cmd.Evidence)
		if err != nil {
			return nil, fault.Wrap(fault.Transient, "evidence_upload_failed", "could not store claim evidence", err)
		}
	}

	ev := domaintx.DepositClaimRequested{
		TransactionID: tx.ID,
		RequestedBy:   cmd.RequestedBy,
		EvidenceRef:   evidenceRef,
		At:            time.Now().UTC(),
	}
	if err := outbox.RecordDomainEvents(execCtx, h.Outbox, h.Encoder, []events.DomainEvent{ev}); err != nil {
		return nil, err
	}
	if err := commit(execCtx); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("deposit claim requested", "transaction_id", tx.ID, "requested_by", cmd.RequestedBy)
	}
	return &RequestClaimResult{TransactionID: string(tx.ID), EvidenceRef: evidenceRef}, nil
}

var _ commands.Handler[RequestClaimCommand, *RequestClaimResult] = (*RequestClaimHandler)(nil)
var _ middleware.TransactionScoped = (*RequestClaimCommand)(nil)
