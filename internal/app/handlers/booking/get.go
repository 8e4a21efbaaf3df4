package booking

import (
	"context"
	"errors"

	"stayflow/internal/app/handlers/support"
	"stayflow/internal/app/queries"
	"stayflow/internal/app/uow"
	domaintx "stayflow/internal/domain/transaction"
)

const getTransactionKey = "booking.get"

type GetTransactionQuery struct {
	TxID        string
	RequestedBy string
}

func (q GetTransactionQuery) Key() string { return getTransactionKey }

// TransactionView is the read model returned to the HTTP layer.
type TransactionView struct {
	TransactionID   string `json:"transaction_id"`
	State           string `json:"state"`
	CustomerID      string `json:"customer_id"`
	ProviderID      string `json:"provider_id"`
	PayinTotal      int64  `json:"payin_total"`
	PayoutTotal     int64  `json:"payout_total"`
	PlatformFee     int64  `json:"platform_fee"`
	Currency        string `json:"currency"`
	DepositStatus   string `json:"deposit_status"`
	DepositAmount   int64  `json:"deposit_amount,omitempty"`
	Rail            string `json:"rail,omitempty"`
	PayoutsDisabled bool   `json:"payouts_disabled,omitempty"`
}

type GetTransactionHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetTransactionHandler) Handle(ctx context.Context, q GetTransactionQuery) (TransactionView, error) {
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return TransactionView{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	tx, err := unit.Transactions().ByID(execCtx, domaintx.ID(q.TxID))
	if err != nil {
		return TransactionView{}, err
	}
	if q.RequestedBy != "" && tx.CustomerID != q.RequestedBy && tx.ProviderID != q.RequestedBy {
		return TransactionView{}, errors.New("booking: not a party to this transaction")
	}
	view := TransactionView{
		TransactionID:   string(tx.ID),
		State:           string(tx.State),
		CustomerID:      tx.CustomerID,
		ProviderID:      tx.ProviderID,
		PayinTotal:      tx.PayinTotal.Amount,
		PayoutTotal:     tx.PayoutTotal.Amount,
		PlatformFee:     tx.PlatformFee.Amount,
		Currency:        tx.PayinTotal.Currency,
		DepositStatus:   string(tx.Deposit.Status),
		DepositAmount:   tx.Deposit.DepositAmount.Amount,
		PayoutsDisabled: tx.PayoutsDisabled,
	}
	if tx.Authorization != nil {
		view.Rail = string(tx.Authorization.Rail)
	}
	return view, nil
}

var _ queries.Handler[GetTransactionQuery, TransactionView] = (*GetTransactionHandler)(nil)
