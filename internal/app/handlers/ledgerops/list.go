package ledgerops

import (
	"context"

	"stayflow/internal/app/handlers/support"
	"stayflow/internal/app/queries"
	"stayflow/internal/app/uow"
	"stayflow/internal/domain/ledger"
	"stayflow/internal/domain/shared/money"
)

type ListEntriesQuery struct {
	TransactionRef string
}

func (q ListEntriesQuery) Key() string { return "ledger.list_entries" }

type EntryView struct {
	ID             string      `json:"id"`
	TransactionRef string      `json:"transaction_ref"`
	Method         string      `json:"method"`
	ChargeRef      string      `json:"charge_ref"`
	PayoutBatchRef string      `json:"payout_batch_ref,omitempty"`
	PayerID        string      `json:"payer_id"`
	PayeeID        string      `json:"payee_id"`
	PayinTotal     money.Money `json:"payin_total"`
	PayoutTotal    money.Money `json:"payout_total"`
	PlatformFee    money.Money `json:"platform_fee"`
	PayoutStatus   string      `json:"payout_status"`
	CreatedAt      string      `json:"created_at"`
}

type ListEntriesHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListEntriesHandler) Handle(ctx context.Context, q ListEntriesQuery) ([]EntryView, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	entries, err := unit.Ledger().ListByTransaction(execCtx, q.TransactionRef)
	if err != nil {
		return nil, err
	}
	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, toEntryView(e))
	}
	return views, nil
}

func toEntryView(e ledger.Entry) EntryView {
	return EntryView{
		ID:             e.ID,
		TransactionRef: e.TransactionRef,
		Method:         string(e.Method),
		ChargeRef:      e.ChargeRef,
		PayoutBatchRef: e.PayoutBatchRef,
		PayerID:        e.PayerID,
		PayeeID:        e.PayeeID,
		PayinTotal:     e.PayinTotal,
		PayoutTotal:    e.PayoutTotal,
		PlatformFee:    e.PlatformFee,
		PayoutStatus:   string(e.PayoutStatus),
		CreatedAt:      e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

var _ queries.Handler[ListEntriesQuery, []EntryView] = (*ListEntriesHandler)(nil)
