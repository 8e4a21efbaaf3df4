package booking

import (
	"context"
	"testing"
	"time"

	domaintx "stayflow/internal/domain/transaction"
	"stayflow/internal/infra/storage/memory"
)

func acceptedTransaction(t *testing.T, stores *memory.UoWFactory) *domaintx.Transaction {
	t.Helper()
	tx := confirmedTransaction(t, stores, cardAuth(), 0)
	if err := tx.Accept(time.Now().UTC()); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	tx.ClearEvents()
	if err := stores.Transactions.Save(context.Background(), tx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return tx
}

func TestCancelRejectsOtherCustomers(t *testing.T) {
	stores := memory.NewUoWFactory()
	acceptedTransaction(t, stores)
	h := &CancelHandler{UoWFactory: stores}

	_, err := h.Handle(context.Background(), CancelCommand{TxID: "tx-1", CustomerID: "someone-else"})
	if err != ErrNotOwnedByCustomer {
		t.Fatalf("err = %v, want ErrNotOwnedByCustomer", err)
	}
	stored, err := stores.Transactions.ByID(context.Background(), "tx-1")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if stored.State != domaintx.StateAccepted {
		t.Fatalf("state = %s, rejected cancel must not transition", stored.State)
	}
}

func TestCancelByOwningCustomer(t *testing.T) {
	stores := memory.NewUoWFactory()
	acceptedTransaction(t, stores)
	notifier := &fakeNotifier{}
	h := &CancelHandler{UoWFactory: stores, Notifier: notifier}

	res, err := h.Handle(context.Background(), CancelCommand{TxID: "tx-1", CustomerID: "cust-1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.State != string(domaintx.StateCanceled) {
		t.Fatalf("state = %s", res.State)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].code != "booking_canceled" {
		t.Fatalf("notifications = %+v", notifier.sent)
	}
}
