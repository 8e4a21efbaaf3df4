package transaction

import (
	"time"

	"stayflow/internal/domain/shared/money"
)

type CheckoutStarted struct {
	TransactionID ID
	CustomerID    string
	ProviderID    string
	PayinTotal    money.Money
	At            time.Time
}

func (e CheckoutStarted) EventName() string     { return "transaction.checkout_started" }
func (e CheckoutStarted) AggregateID() string   { return string(e.TransactionID) }
func (e CheckoutStarted) OccurredAt() time.Time { return e.At }

type PaymentConfirmed struct {
	TransactionID ID
	Rail          Rail
	ChargeRef     string
	PayinTotal    money.Money
	At            time.Time
}

func (e PaymentConfirmed) EventName() string     { return "transaction.payment_confirmed" }
func (e PaymentConfirmed) AggregateID() string   { return string(e.TransactionID) }
func (e PaymentConfirmed) OccurredAt() time.Time { return e.At }

type PaymentExpired struct {
	TransactionID ID
	At            time.Time
}

func (e PaymentExpired) EventName() string     { return "transaction.payment_expired" }
func (e PaymentExpired) AggregateID() string   { return string(e.TransactionID) }
func (e PaymentExpired) OccurredAt() time.Time { return e.At }

type Accepted struct {
	TransactionID ID
	CustomerID    string
	ProviderID    string
	At            time.Time
}

func (e Accepted) EventName() string     { return "transaction.accepted" }
func (e Accepted) AggregateID() string   { return string(e.TransactionID) }
func (e Accepted) OccurredAt() time.Time { return e.At }

// PayoutScheduled carries the payout details surfaced to the provider right
// after acceptance.
type PayoutScheduled struct {
	TransactionID ID
	ProviderID    string
	PayoutTotal   money.Money
	At            time.Time
}

func (e PayoutScheduled) EventName() string     { return "transaction.payout_scheduled" }
func (e PayoutScheduled) AggregateID() string   { return string(e.TransactionID) }
func (e PayoutScheduled) OccurredAt() time.Time { return e.At }

type Declined struct {
	TransactionID ID
	Reason        string
	At            time.Time
}

func (e Declined) EventName() string     { return "transaction.declined" }
func (e Declined) AggregateID() string   { return string(e.TransactionID) }
func (e Declined) OccurredAt() time.Time { return e.At }

type Canceled struct {
	TransactionID ID
	Reason        string
	At            time.Time
}

func (e Canceled) EventName() string     { return "transaction.canceled" }
func (e Canceled) AggregateID() string   { return string(e.TransactionID) }
func (e Canceled) OccurredAt() time.Time { return e.At }

type Completed struct {
	TransactionID ID
	At            time.Time
}

func (e Completed) EventName() string     { return "transaction.completed" }
func (e Completed) AggregateID() string   { return string(e.TransactionID) }
func (e Completed) OccurredAt() time.Time { return e.At }

type PayoutSetupRequired struct {
	TransactionID ID
	ProviderID    string
	At            time.Time
}

func (e PayoutSetupRequired) EventName() string     { return "transaction.payout_setup_required" }
func (e PayoutSetupRequired) AggregateID() string   { return string(e.TransactionID) }
func (e PayoutSetupRequired) OccurredAt() time.Time { return e.At }

type DepositPaidEvent struct {
	TransactionID ID
	Amount        money.Money
	ChargeRef     string
	At            time.Time
}

func (e DepositPaidEvent) EventName() string     { return "deposit.paid" }
func (e DepositPaidEvent) AggregateID() string   { return string(e.TransactionID) }
func (e DepositPaidEvent) OccurredAt() time.Time { return e.At }

type DepositRefundedEvent struct {
	TransactionID ID
	Amount        money.Money
	At            time.Time
}

func (e DepositRefundedEvent) EventName() string     { return "deposit.refunded" }
func (e DepositRefundedEvent) AggregateID() string   { return string(e.TransactionID) }
func (e DepositRefundedEvent) OccurredAt() time.Time { return e.At }

type DepositClaimedEvent struct {
	TransactionID ID
	Amount        money.Money
	At            time.Time
}

func (e DepositClaimedEvent) EventName() string     { return "deposit.claimed" }
func (e DepositClaimedEvent) AggregateID() string   { return string(e.TransactionID) }
func (e DepositClaimedEvent) OccurredAt() time.Time { return e.At }

// DepositClaimRequested is the out-of-band claim entry point; adjudication
// happens outside this core.
type DepositClaimRequested struct {
	TransactionID ID
	RequestedBy   string
	EvidenceRef   string
	At            time.Time
}

func (e DepositClaimRequested) EventName() string     { return "deposit.claim_requested" }
func (e DepositClaimRequested) AggregateID() string   { return string(e.TransactionID) }
func (e DepositClaimRequested) OccurredAt() time.Time { return e.At }

// VoidFailed flags a compensating void that could not complete; picked up by
// manual reconciliation, never retried inline.
type VoidFailed struct {
	TransactionID    ID
	AuthorizationRef string
	Reason           string
	At               time.Time
}

func (e VoidFailed) EventName() string     { return "payment.void_failed" }
func (e VoidFailed) AggregateID() string   { return string(e.TransactionID) }
func (e VoidFailed) OccurredAt() time.Time { return e.At }
