package deposits

import (
	"context"
	"strings"
	"testing"
	"time"

	"stayflow/internal/app/policies"
	"stayflow/internal/domain/deposit"
	"stayflow/internal/domain/shared/fault"
	"stayflow/internal/domain/shared/money"
	domaintx "stayflow/internal/domain/transaction"
	"stayflow/internal/infra/storage/memory"
)

func usd(amount int64) money.Money { return money.Money{Amount: amount, Currency: "USD"} }

type fakeCardRail struct {
	refunds    []money.Money
	refundRefs []string
	refundErr  error
}

func (f *fakeCardRail) CollectAuthorization(_ context.Context, _ policies.CollectCardRequest) (policies.CardAuthorization, error) {
	return policies.CardAuthorization{}, nil
}

func (f *fakeCardRail) ChargeDeposit(_ context.Context, _ policies.DepositCharge) (string, error) {
	return "", nil
}

func (f *fakeCardRail) Refund(_ context.Context, chargeRef string, amount money.Money) error {
	f.refundRefs = append(f.refundRefs, chargeRef)
	f.refunds = append(f.refunds, amount)
	return f.refundErr
}

func (f *fakeCardRail) ListSavedInstruments(_ context.Context, _ string) ([]policies.SavedInstrument, error) {
	return nil, nil
}

type fakeScheduler struct {
	names []string
}

func (f *fakeScheduler) Schedule(_ context.Context, name string, _ any, _ time.Time) error {
	f.names = append(f.names, name)
	return nil
}

// depositPaidTransaction seeds a completed transaction whose deposit was
// charged for 2000 with a 1800 transfer share.
func depositPaidTransaction(t *testing.T, stores *memory.UoWFactory) {
	t.Helper()
	now := time.Now().UTC()
	tx, err := domaintx.New(domaintx.CreateParams{
		ID:         "tx-1",
		CustomerID: "cust-1",
		ProviderID: "prov-1",
		LineItems: []domaintx.LineItem{
			{Code: "nightly-rate", UnitPrice: usd(10000), Quantity: 1, LineTotal: usd(10000)},
		},
		PayinTotal:      usd(10000),
		PayoutTotal:     usd(9000),
		PlatformFee:     usd(1000),
		PaymentDeadline: now.Add(time.Hour),
		CreatedAt:       now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	calc, err := deposit.Calculate(usd(10000), 20)
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if err := tx.RequireDeposit(calc); err != nil {
		t.Fatalf("RequireDeposit: %v", err)
	}
	if err := tx.ConfirmPayment(domaintx.ProviderAuthorization{
		Rail:          domaintx.RailCard,
		Kind:          domaintx.KindPaymentIntent,
		IntentRef:     "pi_1",
		ChargeRef:     "ch_1",
		InstrumentRef: "pm_1",
		Status:        domaintx.AuthCaptured,
	}, now); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if err := tx.MarkDepositPaid("ch_dep_1", now); err != nil {
		t.Fatalf("MarkDepositPaid: %v", err)
	}
	if err := tx.Accept(now); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := tx.Complete(now); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	tx.ClearEvents()
	if err := stores.Transactions.Save(context.Background(), tx); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestRefundReleasesTransferAmount(t *testing.T) {
	stores := memory.NewUoWFactory()
	depositPaidTransaction(t, stores)
	card := &fakeCardRail{}
	h := &RefundHandler{UoWFactory: stores, Card: card}

	res, err := h.Handle(context.Background(), RefundCommand{TxID: "tx-1", RequestedBy: "ops-1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.DepositStatus != string(domaintx.DepositRefunded) {
		t.Fatalf("status = %s", res.DepositStatus)
	}
	if len(card.refunds) != 1 || card.refunds[0].Amount != 1800 {
		t.Fatalf("refunds = %+v, want single refund of the transfer amount", card.refunds)
	}
	if card.refundRefs[0] != "ch_dep_1" {
		t.Fatalf("refund charge ref = %s", card.refundRefs[0])
	}
	stored, _ := stores.Transactions.ByID(context.Background(), "tx-1")
	if stored.Deposit.Status != domaintx.DepositRefunded {
		t.Fatalf("stored status = %s", stored.Deposit.Status)
	}
}

func TestRefundTransientFailureSchedulesSingleRetry(t *testing.T) {
	stores := memory.NewUoWFactory()
	depositPaidTransaction(t, stores)
	card := &fakeCardRail{refundErr: fault.New(fault.Transient, "timeout", "refund timed out")}
	sched := &fakeScheduler{}
	h := &RefundHandler{UoWFactory: stores, Card: card, Scheduler: sched}

	res, err := h.Handle(context.Background(), RefundCommand{TxID: "tx-1", RequestedBy: "ops-1"})
	if err != nil {
		t.Fatalf("Handle: %v, a timeout should schedule, not fail", err)
	}
	if !res.RetryScheduled {
		t.Fatalf("result = %+v, want retry scheduled", res)
	}
	if len(sched.names) != 1 || sched.names[0] != "deposit.refund_retry" {
		t.Fatalf("scheduled = %v", sched.names)
	}
	stored, _ := stores.Transactions.ByID(context.Background(), "tx-1")
	if stored.Deposit.Status != domaintx.DepositPaid {
		t.Fatalf("status = %s, deposit stays paid until the retry lands", stored.Deposit.Status)
	}
}

func TestRefundRejectsUnpaidDeposit(t *testing.T) {
	stores := memory.NewUoWFactory()
	depositPaidTransaction(t, stores)
	card := &fakeCardRail{}
	h := &RefundHandler{UoWFactory: stores, Card: card}

	if _, err := h.Handle(context.Background(), RefundCommand{TxID: "tx-1"}); err != nil {
		t.Fatalf("first refund: %v", err)
	}
	_, err := h.Handle(context.Background(), RefundCommand{TxID: "tx-1"})
	if err == nil || !strings.Contains(err.Error(), "not paid") {
		t.Fatalf("second refund err = %v, want deposit-not-paid", err)
	}
	if len(card.refunds) != 1 {
		t.Fatalf("refunds = %d, double refund must not reach the rail", len(card.refunds))
	}
}
