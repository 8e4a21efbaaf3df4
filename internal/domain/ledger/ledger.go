package ledger

import (
	"context"
	"errors"
	"time"

	"stayflow/internal/domain/shared/money"
)

var (
	ErrEntryNotFound = errors.New("ledger: entry not found")
	ErrStaleUpdate   = errors.New("ledger: payout status changed concurrently")
)

type PaymentMethod string

const (
	MethodStripe PaymentMethod = "stripe"
	MethodPayPal PaymentMethod = "paypal"
)

type PayoutStatus string

const (
	PayoutPending PayoutStatus = "pending"
	PayoutPaid    PayoutStatus = "paid"
	PayoutFailed  PayoutStatus = "failed"
)

// Entry is an immutable settlement record for one completed charge. Monetary
// fields and provider identifiers are written once; only the payout status and
// payout batch id transition afterwards.
type Entry struct {
	ID             string
	TransactionRef string
	Method         PaymentMethod
	ChargeRef      string
	PayoutBatchRef string
	PayerID        string
	PayeeID        string
	PayinTotal     money.Money
	PayoutTotal    money.Money
	PlatformFee    money.Money
	PayoutStatus   PayoutStatus
	CreatedAt      time.Time
}

// Recorder persists settlement rows. Append must be idempotent on
// (TransactionRef, ChargeRef) so a replayed charge confirmation never
// double-records.
type Recorder interface {
	Append(ctx context.Context, entry Entry) error
	ByChargeRef(ctx context.Context, txRef, chargeRef string) (*Entry, error)
	ListByTransaction(ctx context.Context, txRef string) ([]Entry, error)
	// UpdatePayoutStatus moves PayoutStatus from expected to next, also
	// recording the payout batch ref when provided. Returns ErrStaleUpdate
	// when the stored status no longer matches expected.
	UpdatePayoutStatus(ctx context.Context, id string, expected, next PayoutStatus, payoutBatchRef string) error
}

// Validate checks the write-once invariants before an append.
func (e Entry) Validate() error {
	if e.ID == "" || e.TransactionRef == "" || e.ChargeRef == "" {
		return errors.New("ledger: id, transaction ref and charge ref are required")
	}
	if e.Method != MethodStripe && e.Method != MethodPayPal {
		return errors.New("ledger: unknown payment method")
	}
	payout, err := e.PayoutTotal.Add(e.PlatformFee)
	if err != nil {
		return err
	}
	if !payout.Equal(e.PayinTotal) {
		return errors.New("ledger: payout total plus platform fee must equal payin total")
	}
	return nil
}
