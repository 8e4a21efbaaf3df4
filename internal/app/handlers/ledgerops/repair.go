package ledgerops

import (
	"context"
	"log/slog"
	"time"

	"stayflow/internal/app/commands"
	"stayflow/internal/app/handlers/support"
	"stayflow/internal/app/uow"
	"stayflow/internal/domain/ledger"
	"stayflow/internal/domain/shared/fault"
)

type RepairPayoutCommand struct {
	EntryID        string
	ExpectedStatus string
	NextStatus     string
	PayoutBatchRef string
	RepairedBy     string
}

func (c RepairPayoutCommand) Key() string { return "ledger.repair_payout" }

type RepairPayoutResult struct {
	EntryID      string `json:"entry_id"`
	PayoutStatus string `json:"payout_status"`
}

// RepairPayoutHandler is the operator escape hatch for stuck payouts. It only
// ever touches the payout status and batch ref; monetary fields are immutable
// once appended. Every repair is logged with the operator id.
type RepairPayoutHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *RepairPayoutHandler) Handle(ctx context.Context, cmd RepairPayoutCommand) (*RepairPayoutResult, error) {
	if cmd.RepairedBy == "" {
		return nil, fault.New(fault.Validation, "operator_required", "operator id is required for ledger repairs")
	}
	expected, err := parsePayoutStatus(cmd.ExpectedStatus)
	if err != nil {
		return nil, err
	}
	next, err := parsePayoutStatus(cmd.NextStatus)
	if err != nil {
		return nil, err
	}
	if expected == next {
		return nil, fault.New(fault.Validation, "noop_repair", "expected and next payout status are identical")
	}

	unit, execCtx, cleanup, commit, err := support.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	if err := unit.Ledger().UpdatePayoutStatus(execCtx, cmd.EntryID, expected, next, cmd.PayoutBatchRef); err != nil {
		return nil, err
	}
	if err := commit(execCtx); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("ledger payout repaired",
			"entry_id", cmd.EntryID,
			"from", expected,
			"to", next,
			"payout_batch_ref", cmd.PayoutBatchRef,
			"repaired_by", cmd.RepairedBy,
			"at", time.Now().UTC())
	}
	return &RepairPayoutResult{EntryID: cmd.EntryID, PayoutStatus: string(next)}, nil
}

func parsePayoutStatus(s string) (ledger.PayoutStatus, error) {
	switch ledger.PayoutStatus(s) {
	case ledger.PayoutPending, ledger.PayoutPaid, ledger.PayoutFailed:
		return ledger.PayoutStatus(s), nil
	default:
		return "", fault.New(fault.Validation, "unknown_payout_status", "unknown payout status: "+s)
	}
}

var _ commands.Handler[RepairPayoutCommand, *RepairPayoutResult] = (*RepairPayoutHandler)(nil)
