package transaction

import (
	"context"
	"errors"
	"time"

	"stayflow/internal/domain/deposit"
	"stayflow/internal/domain/shared/events"
	"stayflow/internal/domain/shared/money"
)

var (
	ErrInvalidState       = errors.New("transaction: invalid state transition")
	ErrNotFound           = errors.New("transaction: not found")
	ErrVersionConflict    = errors.New("transaction: concurrent modification")
	ErrPaymentExpired     = errors.New("transaction: payment window expired")
	ErrTotalsMismatch     = errors.New("transaction: payout total plus platform fee must equal payin total")
	ErrNoAuthorization    = errors.New("transaction: provider authorization required")
	ErrDepositNotPending  = errors.New("transaction: deposit is not pending")
	ErrDepositNotPaid     = errors.New("transaction: deposit is not paid")
	ErrDepositInFlight    = errors.New("transaction: deposit charge already in flight")
	ErrPartiesRequired    = errors.New("transaction: customer and provider ids are required")
)

type ID string

type ProcessState string

const (
	StateInquiry          ProcessState = "INQUIRY"
	StatePendingPayment   ProcessState = "PENDING_PAYMENT"
	StatePaymentExpired   ProcessState = "PAYMENT_EXPIRED"
	StatePaymentConfirmed ProcessState = "PAYMENT_CONFIRMED"
	StateAccepted         ProcessState = "ACCEPTED"
	StateDeclined         ProcessState = "DECLINED"
	StateCanceled         ProcessState = "CANCELED"
	StateCompleted        ProcessState = "COMPLETED"
	StateReviewed         ProcessState = "REVIEWED"
)

// Terminal reports whether no further checkout transitions may fire.
func (s ProcessState) Terminal() bool {
	switch s {
	case StatePaymentExpired, StateDeclined, StateCanceled, StateReviewed:
		return true
	}
	return false
}

type DepositStatus string

const (
	DepositNone     DepositStatus = "none"
	DepositPending  DepositStatus = "pending"
	DepositCharging DepositStatus = "charging"
	DepositPaid     DepositStatus = "paid"
	DepositRefunded DepositStatus = "refunded"
	DepositClaimed  DepositStatus = "claimed"
)

// SecurityDeposit tracks the secondary hold collected after acceptance.
type SecurityDeposit struct {
	PercentageValue int64
	DepositAmount   money.Money
	TransferAmount  money.Money
	Status          DepositStatus
	ChargeRef       string
}

// Transaction is the unit of a single booking-to-payment lifecycle. It is
// mutated exclusively through its methods; repositories persist it with
// optimistic versioning.
type Transaction struct {
	ID              ID
	ListingID       string
	CustomerID      string
	ProviderID      string
	State           ProcessState
	LineItems       []LineItem
	PayinTotal      money.Money
	PayoutTotal     money.Money
	PlatformFee     money.Money
	Deposit         SecurityDeposit
	Authorization   *ProviderAuthorization
	PayoutsDisabled bool
	PaymentDeadline time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Transaction, error)
	Save(ctx context.Context, tx *Transaction) error
	ListByCustomer(ctx context.Context, customerID string) ([]*Transaction, error)
	ListPendingPaymentBefore(ctx context.Context, deadline time.Time) ([]*Transaction, error)
}

type CreateParams struct {
	ID              ID
	ListingID       string
	CustomerID      string
	ProviderID      string
	LineItems       []LineItem
	PayinTotal      money.Money
	PayoutTotal     money.Money
	PlatformFee     money.Money
	PaymentDeadline time.Time
	CreatedAt       time.Time
}

// New creates a transaction directly in the payment-pending state.
func New(params CreateParams) (*Transaction, error) {
	if params.CustomerID == "" || params.ProviderID == "" {
		return nil, ErrPartiesRequired
	}
	if err := ValidateLineItems(params.LineItems); err != nil {
		return nil, err
	}
	if err := checkTotals(params.PayinTotal, params.PayoutTotal, params.PlatformFee); err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	t := &Transaction{
		ID:              params.ID,
		ListingID:       params.ListingID,
		CustomerID:      params.CustomerID,
		ProviderID:      params.ProviderID,
		State:           StatePendingPayment,
		LineItems:       append([]LineItem(nil), params.LineItems...),
		PayinTotal:      params.PayinTotal,
		PayoutTotal:     params.PayoutTotal,
		PlatformFee:     params.PlatformFee,
		Deposit:         SecurityDeposit{Status: DepositNone},
		PaymentDeadline: params.PaymentDeadline.UTC(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	t.Record(CheckoutStarted{TransactionID: t.ID, CustomerID: t.CustomerID, ProviderID: t.ProviderID, PayinTotal: t.PayinTotal, At: now})
	return t, nil
}

func checkTotals(payin, payout, fee money.Money) error {
	sum, err := payout.Add(fee)
	if err != nil {
		return err
	}
	if !sum.Equal(payin) {
		return ErrTotalsMismatch
	}
	return nil
}

// CheckTotals re-validates the payin/payout/fee invariant on the current values.
func (t *Transaction) CheckTotals() error {
	return checkTotals(t.PayinTotal, t.PayoutTotal, t.PlatformFee)
}

// PaymentWindowLapsed reports whether the pending-payment deadline passed.
func (t *Transaction) PaymentWindowLapsed(now time.Time) bool {
	return t.State == StatePendingPayment && !t.PaymentDeadline.IsZero() && now.After(t.PaymentDeadline)
}

// ExpirePayment moves a lapsed pending-payment transaction to its terminal
// expiry state. No provider interaction is permitted afterwards.
func (t *Transaction) ExpirePayment(now time.Time) error {
	if t.State != StatePendingPayment {
		return ErrInvalidState
	}
	t.State = StatePaymentExpired
	t.UpdatedAt = now.UTC()
	t.Record(PaymentExpired{TransactionID: t.ID, At: t.UpdatedAt})
	return nil
}

// ConfirmPayment records the collected authorization and advances to
// PAYMENT_CONFIRMED. Failed collection attempts never reach this method, so a
// transaction in PENDING_PAYMENT is always safe to retry.
func (t *Transaction) ConfirmPayment(auth ProviderAuthorization, now time.Time) error {
	if t.State != StatePendingPayment {
		return ErrInvalidState
	}
	if t.PaymentWindowLapsed(now) {
		return ErrPaymentExpired
	}
	if err := auth.Validate(); err != nil {
		return err
	}
	t.Authorization = &auth
	t.State = StatePaymentConfirmed
	t.UpdatedAt = now.UTC()
	t.Record(PaymentConfirmed{TransactionID: t.ID, Rail: auth.Rail, ChargeRef: auth.ChargeRef, PayinTotal: t.PayinTotal, At: t.UpdatedAt})
	return nil
}

// RequireDeposit attaches a pending deposit hold derived from the policy.
func (t *Transaction) RequireDeposit(calc deposit.Calculation) error {
	if t.Deposit.Status != DepositNone && t.Deposit.Status != DepositPending {
		return ErrInvalidState
	}
	t.Deposit = SecurityDeposit{
		PercentageValue: calc.PercentageValue,
		DepositAmount:   calc.DepositAmount,
		TransferAmount:  calc.TransferAmount,
		Status:          DepositPending,
	}
	return nil
}

// BeginDepositCharge marks the single in-flight deposit attempt. A second
// caller observing DepositCharging must back off.
func (t *Transaction) BeginDepositCharge() error {
	switch t.Deposit.Status {
	case DepositPending:
		t.Deposit.Status = DepositCharging
		return nil
	case DepositCharging:
		return ErrDepositInFlight
	default:
		return ErrDepositNotPending
	}
}

// AbortDepositCharge returns an in-flight deposit to pending after a failure.
func (t *Transaction) AbortDepositCharge() {
	if t.Deposit.Status == DepositCharging {
		t.Deposit.Status = DepositPending
	}
}

// MarkDepositPaid finalizes a successful deposit charge.
func (t *Transaction) MarkDepositPaid(chargeRef string, now time.Time) error {
	if t.Deposit.Status != DepositCharging && t.Deposit.Status != DepositPending {
		return ErrDepositNotPending
	}
	t.Deposit.Status = DepositPaid
	t.Deposit.ChargeRef = chargeRef
	t.UpdatedAt = now.UTC()
	t.Record(DepositPaidEvent{TransactionID: t.ID, Amount: t.Deposit.DepositAmount, ChargeRef: chargeRef, At: t.UpdatedAt})
	return nil
}

// MarkDepositRefunded releases a paid deposit back to the customer.
func (t *Transaction) MarkDepositRefunded(now time.Time) error {
	if t.Deposit.Status != DepositPaid {
		return ErrDepositNotPaid
	}
	t.Deposit.Status = DepositRefunded
	t.UpdatedAt = now.UTC()
	t.Record(DepositRefundedEvent{TransactionID: t.ID, Amount: t.Deposit.TransferAmount, At: t.UpdatedAt})
	return nil
}

// MarkDepositClaimed records the outcome of an out-of-band claim decision.
func (t *Transaction) MarkDepositClaimed(now time.Time) error {
	if t.Deposit.Status != DepositPaid {
		return ErrDepositNotPaid
	}
	t.Deposit.Status = DepositClaimed
	t.UpdatedAt = now.UTC()
	t.Record(DepositClaimedEvent{TransactionID: t.ID, Amount: t.Deposit.TransferAmount, At: t.UpdatedAt})
	return nil
}

// MarkAuthorizationVoided records a successful compensating void on the
// outstanding provider authorization.
func (t *Transaction) MarkAuthorizationVoided(now time.Time) {
	if t.Authorization == nil || t.Authorization.Status != AuthAuthorized {
		return
	}
	t.Authorization.Status = AuthVoided
	t.UpdatedAt = now.UTC()
}

// SetPayoutsDisabled pauses an accept until the provider finishes payout setup.
// The transaction stays in PAYMENT_CONFIRMED and remains retryable.
func (t *Transaction) SetPayoutsDisabled(now time.Time) {
	if t.PayoutsDisabled {
		return
	}
	t.PayoutsDisabled = true
	t.UpdatedAt = now.UTC()
	t.Record(PayoutSetupRequired{TransactionID: t.ID, ProviderID: t.ProviderID, At: t.UpdatedAt})
}

// ClearPayoutsDisabled removes the pause flag once payout setup completes.
func (t *Transaction) ClearPayoutsDisabled() {
	t.PayoutsDisabled = false
}

// Accept moves a confirmed transaction to ACCEPTED. The deposit outcome must
// already be final or paused; callers enforce the ordering.
func (t *Transaction) Accept(now time.Time) error {
	if t.State != StatePaymentConfirmed {
		return ErrInvalidState
	}
	if err := t.CheckTotals(); err != nil {
		return err
	}
	if t.Deposit.Status == DepositCharging {
		return ErrDepositInFlight
	}
	t.PayoutsDisabled = false
	t.State = StateAccepted
	t.UpdatedAt = now.UTC()
	t.Record(Accepted{TransactionID: t.ID, CustomerID: t.CustomerID, ProviderID: t.ProviderID, At: t.UpdatedAt})
	t.Record(PayoutScheduled{TransactionID: t.ID, ProviderID: t.ProviderID, PayoutTotal: t.PayoutTotal, At: t.UpdatedAt})
	return nil
}

// Decline moves a confirmed transaction to DECLINED. Compensating the
// provider authorization happens after the transition commits.
func (t *Transaction) Decline(reason string, now time.Time) error {
	if t.State != StatePaymentConfirmed {
		return ErrInvalidState
	}
	t.State = StateDeclined
	t.UpdatedAt = now.UTC()
	t.Record(Declined{TransactionID: t.ID, Reason: reason, At: t.UpdatedAt})
	return nil
}

// Cancel aborts an accepted transaction.
func (t *Transaction) Cancel(reason string, now time.Time) error {
	if t.State != StateAccepted {
		return ErrInvalidState
	}
	t.State = StateCanceled
	t.UpdatedAt = now.UTC()
	t.Record(Canceled{TransactionID: t.ID, Reason: reason, At: t.UpdatedAt})
	return nil
}

// Complete closes out the delivery window. A paid deposit stays paid until an
// explicit refund or claim.
func (t *Transaction) Complete(now time.Time) error {
	if t.State != StateAccepted {
		return ErrInvalidState
	}
	t.State = StateCompleted
	t.UpdatedAt = now.UTC()
	t.Record(Completed{TransactionID: t.ID, At: t.UpdatedAt})
	return nil
}

// MarkReviewed records the post-completion review.
func (t *Transaction) MarkReviewed(now time.Time) error {
	if t.State != StateCompleted {
		return ErrInvalidState
	}
	t.State = StateReviewed
	t.UpdatedAt = now.UTC()
	return nil
}
