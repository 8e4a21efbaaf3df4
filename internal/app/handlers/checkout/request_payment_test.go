package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"stayflow/internal/app/policies"
	"stayflow/internal/domain/shared/fault"
	"stayflow/internal/domain/shared/money"
	domaintx "stayflow/internal/domain/transaction"
	"stayflow/internal/infra/storage/memory"
)

func usd(amount int64) money.Money { return money.Money{Amount: amount, Currency: "USD"} }

func testItems(total int64) []domaintx.LineItem {
	return []domaintx.LineItem{{Code: "nightly-rate", UnitPrice: usd(total), Quantity: 1, LineTotal: usd(total)}}
}

type fakeCardRail struct {
	collectRes  policies.CardAuthorization
	collectErr  error
	collects    []policies.CollectCardRequest
	charges     []policies.DepositCharge
	chargeRef   string
	chargeErr   error
	chargeErrs  []error // consumed first when set
	refundErr   error
	refunds     []string
	instruments []policies.SavedInstrument
}

func (f *fakeCardRail) CollectAuthorization(_ context.Context, req policies.CollectCardRequest) (policies.CardAuthorization, error) {
	f.collects = append(f.collects, req)
	return f.collectRes, f.collectErr
}

func (f *fakeCardRail) ChargeDeposit(_ context.Context, charge policies.DepositCharge) (string, error) {
	f.charges = append(f.charges, charge)
	if len(f.chargeErrs) > 0 {
		err := f.chargeErrs[0]
		f.chargeErrs = f.chargeErrs[1:]
		if err != nil {
			return "", err
		}
		return f.chargeRef, nil
	}
	if f.chargeErr != nil {
		return "", f.chargeErr
	}
	return f.chargeRef, nil
}

func (f *fakeCardRail) Refund(_ context.Context, chargeRef string, _ money.Money) error {
	f.refunds = append(f.refunds, chargeRef)
	return f.refundErr
}

func (f *fakeCardRail) ListSavedInstruments(_ context.Context, _ string) ([]policies.SavedInstrument, error) {
	return f.instruments, nil
}

type fakePayPalRail struct {
	orderRef   string
	createErr  error
	authRes    policies.PayPalAuthorization
	authErr    error
	captures   []string
	captureRes policies.FinalizeOutcome
	captureErr error
	voids      []string
	voidRes    policies.FinalizeOutcome
	voidErr    error
}

func (f *fakePayPalRail) CreateOrder(_ context.Context, _ money.Money, _ string) (string, error) {
	return f.orderRef, f.createErr
}

func (f *fakePayPalRail) Authorize(_ context.Context, orderRef string) (policies.PayPalAuthorization, error) {
	if f.authErr != nil {
		return policies.PayPalAuthorization{}, f.authErr
	}
	res := f.authRes
	if res.OrderRef == "" {
		res.OrderRef = orderRef
	}
	return res, nil
}

func (f *fakePayPalRail) Capture(_ context.Context, authorizationRef string) (policies.FinalizeOutcome, error) {
	f.captures = append(f.captures, authorizationRef)
	return f.captureRes, f.captureErr
}

func (f *fakePayPalRail) Void(_ context.Context, authorizationRef string) (policies.FinalizeOutcome, error) {
	f.voids = append(f.voids, authorizationRef)
	return f.voidRes, f.voidErr
}

type fakeGate struct {
	token string
	err   error
}

func (f fakeGate) Verify(_ context.Context, _ string) (string, error) { return f.token, f.err }

func cardCommand(total int64) RequestPaymentCommand {
	return RequestPaymentCommand{
		CommandID:   "tx-1",
		CustomerID:  "cust-1",
		ProviderID:  "prov-1",
		Rail:        domaintx.RailCard,
		Flow:        policies.CardFlowOneTimeSave,
		LineItems:   testItems(total),
		PayinTotal:  usd(total),
		PayoutTotal: usd(total - total/10),
		PlatformFee: usd(total / 10),
	}
}

func TestRequestPaymentCardHappyPath(t *testing.T) {
	stores := memory.NewUoWFactory()
	card := &fakeCardRail{collectRes: policies.CardAuthorization{
		Status:        domaintx.AuthCaptured,
		Kind:          domaintx.KindPaymentIntent,
		IntentRef:     "pi_1",
		ChargeRef:     "ch_1",
		InstrumentRef: "pm_1",
	}}
	h := &RequestPaymentHandler{UoWFactory: stores, Card: card, Gate: fakeGate{token: "tok"}}

	cmd := cardCommand(10000)
	cmd.DepositPercentage = 20
	res, err := h.Handle(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.State != string(domaintx.StatePaymentConfirmed) {
		t.Fatalf("state = %s, want %s", res.State, domaintx.StatePaymentConfirmed)
	}

	tx, err := stores.Transactions.ByID(context.Background(), domaintx.ID(res.TransactionID))
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if tx.Authorization == nil || tx.Authorization.Rail != domaintx.RailCard || tx.Authorization.ChargeRef != "ch_1" {
		t.Fatalf("authorization = %+v", tx.Authorization)
	}
	if tx.Deposit.Status != domaintx.DepositPending || tx.Deposit.DepositAmount.Amount != 2000 {
		t.Fatalf("deposit = %+v", tx.Deposit)
	}
	entry, err := stores.Ledger.ByChargeRef(context.Background(), res.TransactionID, "ch_1")
	if err != nil {
		t.Fatalf("ledger entry: %v", err)
	}
	if entry.Method != "stripe" || entry.PayinTotal.Amount != 10000 || entry.PlatformFee.Amount != 1000 {
		t.Fatalf("entry = %+v", entry)
	}
}

func TestRequestPaymentCardRequiresAction(t *testing.T) {
	stores := memory.NewUoWFactory()
	card := &fakeCardRail{collectRes: policies.CardAuthorization{
		Status:       domaintx.AuthRequiresAction,
		Kind:         domaintx.KindPaymentIntent,
		IntentRef:    "pi_1",
		Continuation: "secret_1",
	}}
	h := &RequestPaymentHandler{UoWFactory: stores, Card: card}

	res, err := h.Handle(context.Background(), cardCommand(10000))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !res.RequiresAction || res.Continuation != "secret_1" {
		t.Fatalf("result = %+v, want requires action", res)
	}
	tx, _ := stores.Transactions.ByID(context.Background(), domaintx.ID(res.TransactionID))
	if tx.State != domaintx.StatePendingPayment {
		t.Fatalf("state = %s, want PENDING_PAYMENT", tx.State)
	}
	if entries, _ := stores.Ledger.ListByTransaction(context.Background(), res.TransactionID); len(entries) != 0 {
		t.Fatalf("ledger entries = %d, want none before confirmation", len(entries))
	}
}

func TestRequestPaymentRailFailureStaysRetryable(t *testing.T) {
	stores := memory.NewUoWFactory()
	card := &fakeCardRail{collectErr: fault.New(fault.ProviderRejected, "card_declined", "card declined")}
	h := &RequestPaymentHandler{UoWFactory: stores, Card: card}

	_, err := h.Handle(context.Background(), cardCommand(10000))
	if !fault.Is(err, fault.ProviderRejected) {
		t.Fatalf("err = %v, want provider rejection", err)
	}

	// The pending transaction committed before the rail call, so the retry
	// picks it up by id instead of creating a duplicate.
	tx, err := stores.Transactions.ByID(context.Background(), "tx-1")
	if err != nil {
		t.Fatalf("ByID after failure: %v", err)
	}
	if tx.State != domaintx.StatePendingPayment {
		t.Fatalf("state = %s, want PENDING_PAYMENT", tx.State)
	}
	if entries, _ := stores.Ledger.ListByTransaction(context.Background(), "tx-1"); len(entries) != 0 {
		t.Fatalf("ledger entries = %d, want none for failed attempt", len(entries))
	}

	card.collectErr = nil
	card.collectRes = policies.CardAuthorization{Status: domaintx.AuthCaptured, Kind: domaintx.KindPaymentIntent, IntentRef: "pi_2", ChargeRef: "ch_2"}
	retry := cardCommand(10000)
	retry.TxID = "tx-1"
	res, err := h.Handle(context.Background(), retry)
	if err != nil {
		t.Fatalf("retry Handle: %v", err)
	}
	if res.State != string(domaintx.StatePaymentConfirmed) {
		t.Fatalf("retry state = %s", res.State)
	}
}

func TestRequestPaymentPayPalAuthorizesWithoutCapture(t *testing.T) {
	stores := memory.NewUoWFactory()
	pp := &fakePayPalRail{orderRef: "ord_1", authRes: policies.PayPalAuthorization{OrderRef: "ord_1", AuthorizationRef: "auth_1"}}
	h := &RequestPaymentHandler{UoWFactory: stores, PayPal: pp}

	cmd := cardCommand(10000)
	cmd.Rail = domaintx.RailPayPal
	res, err := h.Handle(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(pp.captures) != 0 {
		t.Fatalf("captures = %d, capture must wait for acceptance", len(pp.captures))
	}
	tx, _ := stores.Transactions.ByID(context.Background(), domaintx.ID(res.TransactionID))
	if tx.Authorization.Status != domaintx.AuthAuthorized || tx.Authorization.AuthorizationRef != "auth_1" {
		t.Fatalf("authorization = %+v", tx.Authorization)
	}
	entry, err := stores.Ledger.ByChargeRef(context.Background(), res.TransactionID, "auth_1")
	if err != nil {
		t.Fatalf("ledger entry: %v", err)
	}
	if entry.Method != "paypal" {
		t.Fatalf("method = %s", entry.Method)
	}
}

func TestRequestPaymentPayPalBelowFloor(t *testing.T) {
	h := &RequestPaymentHandler{UoWFactory: memory.NewUoWFactory()}
	cmd := RequestPaymentCommand{
		CommandID:   "tx-low",
		CustomerID:  "cust-1",
		ProviderID:  "prov-1",
		Rail:        domaintx.RailPayPal,
		LineItems:   testItems(498),
		PayinTotal:  usd(498),
		PayoutTotal: usd(448),
		PlatformFee: usd(50),
	}
	_, err := h.Handle(context.Background(), cmd)
	if !fault.Is(err, fault.Validation) {
		t.Fatalf("err = %v, want validation fault", err)
	}
	var f *fault.Error
	if !errors.As(err, &f) || f.Code != "paypal_below_floor" {
		t.Fatalf("code = %v", err)
	}
}

func TestRequestPaymentBlocksWithoutVerificationToken(t *testing.T) {
	h := &RequestPaymentHandler{UoWFactory: memory.NewUoWFactory(), Gate: fakeGate{token: ""}}
	_, err := h.Handle(context.Background(), cardCommand(10000))
	if !fault.Is(err, fault.VerificationRequired) {
		t.Fatalf("err = %v, want verification required", err)
	}
}

func TestRequestPaymentExpiredWindow(t *testing.T) {
	stores := memory.NewUoWFactory()
	past := time.Now().Add(-time.Hour)
	tx, err := domaintx.New(domaintx.CreateParams{
		ID:              "tx-old",
		CustomerID:      "cust-1",
		ProviderID:      "prov-1",
		LineItems:       testItems(10000),
		PayinTotal:      usd(10000),
		PayoutTotal:     usd(9000),
		PlatformFee:     usd(1000),
		PaymentDeadline: past,
		CreatedAt:       past.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tx.ClearEvents()
	if err := stores.Transactions.Save(context.Background(), tx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	h := &RequestPaymentHandler{UoWFactory: stores, Card: &fakeCardRail{}}
	cmd := cardCommand(10000)
	cmd.TxID = "tx-old"
	_, err = h.Handle(context.Background(), cmd)
	if !fault.Is(err, fault.Validation) {
		t.Fatalf("err = %v, want validation fault", err)
	}
	stored, _ := stores.Transactions.ByID(context.Background(), "tx-old")
	if stored.State != domaintx.StatePaymentExpired {
		t.Fatalf("state = %s, want PAYMENT_EXPIRED", stored.State)
	}
}
