package policies

import (
	"context"

	"stayflow/internal/domain/shared/money"
	domaintx "stayflow/internal/domain/transaction"
)

type CardFlow string

const (
	CardFlowOneTime     CardFlow = "one_time"
	CardFlowOneTimeSave CardFlow = "one_time_save"
	CardFlowSaved       CardFlow = "saved_instrument"
)

// CollectCardRequest asks the card rail to collect authorization for the
// pay-in total.
type CollectCardRequest struct {
	TransactionID string
	CustomerRef   string
	Amount        money.Money
	Flow          CardFlow
	InstrumentRef string
	Description   string
}

// CardAuthorization is the rail's answer. When the network demands a
// challenge, Status is requires-action and Continuation carries the payload
// the client needs to finish the flow.
type CardAuthorization struct {
	Status        domaintx.AuthorizationStatus
	Kind          domaintx.AuthorizationKind
	IntentRef     string
	ChargeRef     string
	InstrumentRef string
	Continuation  string
}

// DepositCharge is an off-session charge against a previously saved
// instrument. Key deduplicates retries of the same deposit attempt; Token is
// an optional proof-of-human token attached to the charge.
type DepositCharge struct {
	TransactionID string
	CustomerRef   string
	Amount        money.Money
	InstrumentRef string
	Key           string
	Token         string
}

type SavedInstrument struct {
	Ref      string
	Brand    string
	Last4    string
	ExpMonth int
	ExpYear  int
	Expired  bool
}

// CardRail is the card-network adapter contract (one-time payments, saved
// instruments, deposits, refunds).
type CardRail interface {
	CollectAuthorization(ctx context.Context, req CollectCardRequest) (CardAuthorization, error)
	ChargeDeposit(ctx context.Context, charge DepositCharge) (string, error)
	Refund(ctx context.Context, chargeRef string, amount money.Money) error
	ListSavedInstruments(ctx context.Context, customerRef string) ([]SavedInstrument, error)
}

// PayPalAuthorization mirrors an authorized (not captured) PayPal order.
type PayPalAuthorization struct {
	OrderRef         string
	AuthorizationRef string
	PayerID          string
	PayerEmail       string
}

// FinalizeOutcome reports a capture or void result. AlreadyFinal means the
// authorization had been finalized earlier and the call was a no-op.
type FinalizeOutcome struct {
	Status       domaintx.AuthorizationStatus
	AlreadyFinal bool
}

// PayPalRail authorizes at checkout and defers capture to acceptance, so the
// platform never holds funds for a booking that may be declined.
type PayPalRail interface {
	CreateOrder(ctx context.Context, amount money.Money, description string) (string, error)
	Authorize(ctx context.Context, orderRef string) (PayPalAuthorization, error)
	Capture(ctx context.Context, authorizationRef string) (FinalizeOutcome, error)
	Void(ctx context.Context, authorizationRef string) (FinalizeOutcome, error)
}
