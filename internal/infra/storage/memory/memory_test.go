package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"stayflow/internal/domain/ledger"
	"stayflow/internal/domain/shared/money"
	domaintx "stayflow/internal/domain/transaction"
)

func newTestTransaction(t *testing.T, id string, deadline time.Time) *domaintx.Transaction {
	t.Helper()
	total := money.Money{Amount: 10000, Currency: "USD"}
	tx, err := domaintx.New(domaintx.CreateParams{
		ID:         domaintx.ID(id),
		ListingID:  "lst-1",
		CustomerID: "cust-1",
		ProviderID: "prov-1",
		LineItems: []domaintx.LineItem{{
			Code:      "night",
			UnitPrice: total,
			Quantity:  1,
			LineTotal: total,
		}},
		PayinTotal:      total,
		PayoutTotal:     money.Money{Amount: 9000, Currency: "USD"},
		PlatformFee:     money.Money{Amount: 1000, Currency: "USD"},
		PaymentDeadline: deadline,
		CreatedAt:       time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("new transaction: %v", err)
	}
	return tx
}

func TestTransactionRepositoryVersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepository()
	tx := newTestTransaction(t, "tx-1", time.Now().Add(time.Hour))

	if err := repo.Save(ctx, tx); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if tx.Version != 1 {
		t.Fatalf("version after first save = %d, want 1", tx.Version)
	}

	stale, err := repo.ByID(ctx, tx.ID)
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	if err := repo.Save(ctx, tx); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if err := repo.Save(ctx, stale); !errors.Is(err, domaintx.ErrVersionConflict) {
		t.Fatalf("stale save error = %v, want ErrVersionConflict", err)
	}
}

func TestTransactionRepositoryReturnsClones(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepository()
	tx := newTestTransaction(t, "tx-1", time.Now().Add(time.Hour))
	if err := repo.Save(ctx, tx); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := repo.ByID(ctx, tx.ID)
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	loaded.CustomerID = "someone-else"

	again, err := repo.ByID(ctx, tx.ID)
	if err != nil {
		t.Fatalf("by id: %v", err)
	}
	if again.CustomerID != "cust-1" {
		t.Fatalf("stored copy mutated through returned pointer")
	}
}

func TestListPendingPaymentBefore(t *testing.T) {
	ctx := context.Background()
	repo := NewTransactionRepository()
	now := time.Now().UTC()

	overdue := newTestTransaction(t, "tx-overdue", now.Add(-time.Minute))
	fresh := newTestTransaction(t, "tx-fresh", now.Add(time.Hour))
	for _, tx := range []*domaintx.Transaction{overdue, fresh} {
		if err := repo.Save(ctx, tx); err != nil {
			t.Fatalf("save %s: %v", tx.ID, err)
		}
	}

	got, err := repo.ListPendingPaymentBefore(ctx, now)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "tx-overdue" {
		t.Fatalf("list = %v, want only tx-overdue", got)
	}
}

func testEntry(id, txRef, chargeRef string) ledger.Entry {
	return ledger.Entry{
		ID:             id,
		TransactionRef: txRef,
		Method:         ledger.MethodStripe,
		ChargeRef:      chargeRef,
		PayerID:        "cust-1",
		PayeeID:        "prov-1",
		PayinTotal:     money.Money{Amount: 10000, Currency: "USD"},
		PayoutTotal:    money.Money{Amount: 9000, Currency: "USD"},
		PlatformFee:    money.Money{Amount: 1000, Currency: "USD"},
		PayoutStatus:   ledger.PayoutPending,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestLedgerAppendIdempotent(t *testing.T) {
	ctx := context.Background()
	rec := NewLedgerRecorder()

	if err := rec.Append(ctx, testEntry("led-1", "tx-1", "ch_1")); err != nil {
		t.Fatalf("first append: %v", err)
	}
	// Replay with a different id but the same refs must be a no-op.
	if err := rec.Append(ctx, testEntry("led-2", "tx-1", "ch_1")); err != nil {
		t.Fatalf("replayed append: %v", err)
	}

	entries, err := rec.ListByTransaction(ctx, "tx-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].ID != "led-1" {
		t.Fatalf("kept entry = %s, want led-1", entries[0].ID)
	}
}

func TestLedgerUpdatePayoutStatus(t *testing.T) {
	ctx := context.Background()
	rec := NewLedgerRecorder()
	if err := rec.Append(ctx, testEntry("led-1", "tx-1", "ch_1")); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := rec.UpdatePayoutStatus(ctx, "led-1", ledger.PayoutPending, ledger.PayoutPaid, "batch-1"); err != nil {
		t.Fatalf("update: %v", err)
	}
	entry, err := rec.ByChargeRef(ctx, "tx-1", "ch_1")
	if err != nil {
		t.Fatalf("by charge ref: %v", err)
	}
	if entry.PayoutStatus != ledger.PayoutPaid || entry.PayoutBatchRef != "batch-1" {
		t.Fatalf("entry after update = %+v", entry)
	}

	err = rec.UpdatePayoutStatus(ctx, "led-1", ledger.PayoutPending, ledger.PayoutFailed, "")
	if !errors.Is(err, ledger.ErrStaleUpdate) {
		t.Fatalf("stale update error = %v, want ErrStaleUpdate", err)
	}
	if err := rec.UpdatePayoutStatus(ctx, "missing", ledger.PayoutPending, ledger.PayoutPaid, ""); !errors.Is(err, ledger.ErrEntryNotFound) {
		t.Fatalf("missing entry error = %v, want ErrEntryNotFound", err)
	}
}
