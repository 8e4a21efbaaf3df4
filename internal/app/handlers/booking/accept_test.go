package booking

import (
	"context"
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

func testItems(total int64) []domaintx.LineItem {
	return []domaintx.LineItem{{Code: "nightly-rate", UnitPrice: usd(total), Quantity: 1, LineTotal: usd(total)}}
}

// confirmedTransaction seeds a PAYMENT_CONFIRMED transaction into the store.
func confirmedTransaction(t *testing.T, stores *memory.UoWFactory, auth domaintx.ProviderAuthorization, depositPct int64) *domaintx.Transaction {
	t.Helper()
	now := time.Now().UTC()
	tx, err := domaintx.New(domaintx.CreateParams{
		ID:              "tx-1",
		CustomerID:      "cust-1",
		ProviderID:      "prov-1",
		LineItems:       testItems(10000),
		PayinTotal:      usd(10000),
		PayoutTotal:     usd(9000),
		PlatformFee:     usd(1000),
		PaymentDeadline: now.Add(time.Hour),
		CreatedAt:       now,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if depositPct > 0 {
		calc, err := deposit.Calculate(usd(10000), depositPct)
		if err != nil {
			t.Fatalf("Calculate: %v", err)
		}
		if err := tx.RequireDeposit(calc); err != nil {
			t.Fatalf("RequireDeposit: %v", err)
		}
	}
	if err := tx.ConfirmPayment(auth, now); err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	tx.ClearEvents()
	if err := stores.Transactions.Save(context.Background(), tx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return tx
}

func cardAuth() domaintx.ProviderAuthorization {
	return domaintx.ProviderAuthorization{
		Rail:          domaintx.RailCard,
		Kind:          domaintx.KindPaymentIntent,
		IntentRef:     "pi_1",
		ChargeRef:     "ch_1",
		InstrumentRef: "pm_1",
		Status:        domaintx.AuthCaptured,
	}
}

func paypalAuth() domaintx.ProviderAuthorization {
	return domaintx.ProviderAuthorization{
		Rail:             domaintx.RailPayPal,
		Kind:             domaintx.KindPayPalOrder,
		OrderRef:         "ord_1",
		AuthorizationRef: "auth_1",
		ChargeRef:        "auth_1",
		Status:           domaintx.AuthAuthorized,
	}
}

type fakeCardRail struct {
	charges    []policies.DepositCharge
	chargeRef  string
	chargeErrs []error
	refunds    []string
	refundErr  error
}

func (f *fakeCardRail) CollectAuthorization(_ context.Context, _ policies.CollectCardRequest) (policies.CardAuthorization, error) {
	return policies.CardAuthorization{}, nil
}

func (f *fakeCardRail) ChargeDeposit(_ context.Context, charge policies.DepositCharge) (string, error) {
	f.charges = append(f.charges, charge)
	if len(f.chargeErrs) > 0 {
		err := f.chargeErrs[0]
		f.chargeErrs = f.chargeErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.chargeRef, nil
}

func (f *fakeCardRail) Refund(_ context.Context, chargeRef string, _ money.Money) error {
	f.refunds = append(f.refunds, chargeRef)
	return f.refundErr
}

func (f *fakeCardRail) ListSavedInstruments(_ context.Context, _ string) ([]policies.SavedInstrument, error) {
	return nil, nil
}

type fakePayPalRail struct {
	captures   []string
	captureErr error
	voids      []string
	voidRes    policies.FinalizeOutcome
	voidErrs   []error
}

func (f *fakePayPalRail) CreateOrder(_ context.Context, _ money.Money, _ string) (string, error) {
	return "", nil
}

func (f *fakePayPalRail) Authorize(_ context.Context, _ string) (policies.PayPalAuthorization, error) {
	return policies.PayPalAuthorization{}, nil
}

func (f *fakePayPalRail) Capture(_ context.Context, authorizationRef string) (policies.FinalizeOutcome, error) {
	f.captures = append(f.captures, authorizationRef)
	if f.captureErr != nil {
		return policies.FinalizeOutcome{}, f.captureErr
	}
	return policies.FinalizeOutcome{Status: domaintx.AuthCaptured}, nil
}

func (f *fakePayPalRail) Void(_ context.Context, authorizationRef string) (policies.FinalizeOutcome, error) {
	f.voids = append(f.voids, authorizationRef)
	if len(f.voidErrs) > 0 {
		err := f.voidErrs[0]
		f.voidErrs = f.voidErrs[1:]
		if err != nil {
			return policies.FinalizeOutcome{}, err
		}
	}
	return f.voidRes, nil
}

type fakeGate struct {
	token string
	err   error
}

func (f fakeGate) Verify(_ context.Context, _ string) (string, error) { return f.token, f.err }

type recordedNotification struct {
	code string
	txID string
}

type fakeNotifier struct {
	sent []recordedNotification
}

func (f *fakeNotifier) Notify(_ context.Context, eventCode, transactionID string, _ map[string]any) {
	f.sent = append(f.sent, recordedNotification{code: eventCode, txID: transactionID})
}

type fakeScheduler struct {
	names []string
}

func (f *fakeScheduler) Schedule(_ context.Context, name string, _ any, _ time.Time) error {
	f.names = append(f.names, name)
	return nil
}

func TestAcceptChargesDepositAndNotifies(t *testing.T) {
	stores := memory.NewUoWFactory()
	confirmedTransaction(t, stores, cardAuth(), 20)
	card := &fakeCardRail{chargeRef: "ch_dep_1"}
	notifier := &fakeNotifier{}
	h := &AcceptHandler{
		UoWFactory: stores,
		Card:       card,
		Verify:     TokenRetryPolicy{Gate: fakeGate{token: "tok"}},
		Notifier:   notifier,
	}

	res, err := h.Handle(context.Background(), AcceptCommand{TxID: "tx-1", ProviderID: "prov-1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.State != string(domaintx.StateAccepted) || res.DepositStatus != string(domaintx.DepositPaid) {
		t.Fatalf("result = %+v", res)
	}
	if len(card.charges) != 1 {
		t.Fatalf("deposit charges = %d, want 1", len(card.charges))
	}
	charge := card.charges[0]
	if charge.Key != "tx-1-deposit" || charge.InstrumentRef != "pm_1" || charge.Amount.Amount != 2000 || charge.Token != "tok" {
		t.Fatalf("charge = %+v", charge)
	}

	stored, _ := stores.Transactions.ByID(context.Background(), "tx-1")
	if stored.Deposit.Status != domaintx.DepositPaid || stored.Deposit.ChargeRef != "ch_dep_1" {
		t.Fatalf("deposit = %+v", stored.Deposit)
	}
	codes := map[string]bool{}
	for _, n := range notifier.sent {
		codes[n.code] = true
	}
	if !codes["booking_accepted"] || !codes["payout_details"] {
		t.Fatalf("notifications = %+v", notifier.sent)
	}
}

func TestAcceptPausesWhenPayoutSetupIncomplete(t *testing.T) {
	stores := memory.NewUoWFactory()
	confirmedTransaction(t, stores, cardAuth(), 20)
	card := &fakeCardRail{chargeErrs: []error{
		fault.New(fault.PayoutSetupRequired, "account_payouts_disabled", "payouts not enabled"),
	}}
	h := &AcceptHandler{UoWFactory: stores, Card: card}

	res, err := h.Handle(context.Background(), AcceptCommand{TxID: "tx-1", ProviderID: "prov-1"})
	if err != nil {
		t.Fatalf("Handle: %v, pause is not an error", err)
	}
	if !res.PayoutSetupRequired {
		t.Fatalf("result = %+v, want payout setup required", res)
	}
	if res.State != string(domaintx.StatePaymentConfirmed) {
		t.Fatalf("state = %s, accept must not advance while paused", res.State)
	}

	stored, _ := stores.Transactions.ByID(context.Background(), "tx-1")
	if !stored.PayoutsDisabled {
		t.Fatal("PayoutsDisabled not set")
	}
	if stored.Deposit.Status != domaintx.DepositPending {
		t.Fatalf("deposit = %s, must return to pending for the retry", stored.Deposit.Status)
	}

	// After payout onboarding completes, the same accept succeeds.
	card.chargeRef = "ch_dep_2"
	res, err = h.Handle(context.Background(), AcceptCommand{TxID: "tx-1", ProviderID: "prov-1"})
	if err != nil {
		t.Fatalf("retry Handle: %v", err)
	}
	if res.State != string(domaintx.StateAccepted) {
		t.Fatalf("retry state = %s", res.State)
	}
	stored, _ = stores.Transactions.ByID(context.Background(), "tx-1")
	if stored.PayoutsDisabled {
		t.Fatal("PayoutsDisabled should clear on successful accept")
	}
}

func TestAcceptDepositDeclineAbortsAccept(t *testing.T) {
	stores := memory.NewUoWFactory()
	confirmedTransaction(t, stores, cardAuth(), 20)
	card := &fakeCardRail{chargeErrs: []error{
		fault.New(fault.ProviderRejected, "card_declined", "insufficient funds"),
	}}
	h := &AcceptHandler{UoWFactory: stores, Card: card}

	_, err := h.Handle(context.Background(), AcceptCommand{TxID: "tx-1", ProviderID: "prov-1"})
	if !fault.Is(err, fault.ProviderRejected) {
		t.Fatalf("err = %v, want provider rejection", err)
	}
	stored, _ := stores.Transactions.ByID(context.Background(), "tx-1")
	if stored.State != domaintx.StatePaymentConfirmed {
		t.Fatalf("state = %s, failed deposit must not advance the accept", stored.State)
	}
}

func TestAcceptRetriesOnceWithoutRejectedToken(t *testing.T) {
	stores := memory.NewUoWFactory()
	confirmedTransaction(t, stores, cardAuth(), 20)
	card := &fakeCardRail{
		chargeRef: "ch_dep_1",
		chargeErrs: []error{
			fault.New(fault.VerificationRequired, "token_rejected", "verification token rejected"),
			nil,
		},
	}
	h := &AcceptHandler{
		UoWFactory: stores,
		Card:       card,
		Verify:     TokenRetryPolicy{Gate: fakeGate{token: "stale"}},
	}

	res, err := h.Handle(context.Background(), AcceptCommand{TxID: "tx-1", ProviderID: "prov-1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.State != string(domaintx.StateAccepted) {
		t.Fatalf("state = %s", res.State)
	}
	if len(card.charges) != 2 {
		t.Fatalf("charges = %d, want exactly one retry", len(card.charges))
	}
	if card.charges[0].Token != "stale" || card.charges[1].Token != "" {
		t.Fatalf("tokens = %q then %q, retry must drop the token", card.charges[0].Token, card.charges[1].Token)
	}
}

func TestAcceptCapturesPayPalAuthorization(t *testing.T) {
	stores := memory.NewUoWFactory()
	confirmedTransaction(t, stores, paypalAuth(), 0)
	pp := &fakePayPalRail{}
	h := &AcceptHandler{UoWFactory: stores, PayPal: pp}

	res, err := h.Handle(context.Background(), AcceptCommand{TxID: "tx-1", ProviderID: "prov-1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.State != string(domaintx.StateAccepted) {
		t.Fatalf("state = %s", res.State)
	}
	if len(pp.captures) != 1 || pp.captures[0] != "auth_1" {
		t.Fatalf("captures = %v, want exactly one", pp.captures)
	}
	stored, _ := stores.Transactions.ByID(context.Background(), "tx-1")
	if stored.Authorization.Status != domaintx.AuthCaptured {
		t.Fatalf("authorization status = %s", stored.Authorization.Status)
	}
}

func TestAcceptRejectsForeignProvider(t *testing.T) {
	stores := memory.NewUoWFactory()
	confirmedTransaction(t, stores, cardAuth(), 0)
	h := &AcceptHandler{UoWFactory: stores}

	if _, err := h.Handle(context.Background(), AcceptCommand{TxID: "tx-1", ProviderID: "someone-else"}); err != ErrNotOwnedByProvider {
		t.Fatalf("err = %v, want ErrNotOwnedByProvider", err)
	}
}
