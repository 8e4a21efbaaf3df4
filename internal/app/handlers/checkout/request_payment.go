package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stayflow/internal/app/commands"
	"stayflow/internal/app/handlers/support"
	"stayflow/internal/app/middleware"
	"stayflow/internal/app/outbox"
	"stayflow/internal/app/policies"
	"stayflow/internal/app/uow"
	"stayflow/internal/domain/deposit"
	domainledger "stayflow/internal/domain/ledger"
	"stayflow/internal/domain/shared/fault"
	"stayflow/internal/domain/shared/money"
	domaintx "stayflow/internal/domain/transaction"
)

const requestPaymentKey = "checkout.request_payment"

// DefaultPaymentWindow bounds how long a pending payment may wait for
// confirmation before it expires.
const DefaultPaymentWindow = 30 * time.Minute

type RequestPaymentCommand struct {
	CommandID         string
	TxID              string
	ListingID         string
	CustomerID        string
	ProviderID        string
	Rail              domaintx.Rail
	Flow              policies.CardFlow
	InstrumentRef     string
	LineItems         []domaintx.LineItem
	PayinTotal        money.Money
	PayoutTotal       money.Money
	PlatformFee       money.Money
	DepositPercentage int64
	Description       string
	IdempotencyKeyV   string
}

func (c RequestPaymentCommand) Key() string            { return requestPaymentKey }
func (c RequestPaymentCommand) IdempotencyKey() string { return c.IdempotencyKeyV }
func (c RequestPaymentCommand) ResultPrototype() any   { return &RequestPaymentResult{} }
func (c RequestPaymentCommand) TransactionID() string  { return c.TxID }

type RequestPaymentResult struct {
	TransactionID  string `json:"transaction_id"`
	State          string `json:"state"`
	RequiresAction bool   `json:"requires_action,omitempty"`
	Continuation   string `json:"continuation,omitempty"`
}

type RequestPaymentHandler struct {
	UoWFactory    uow.UoWFactory
	Card          policies.CardRail
	PayPal        policies.PayPalRail
	Gate          policies.VerificationGate
	Outbox        outbox.Outbox
	Encoder       outbox.EventEncoder
	Logger        *slog.Logger
	PayPalFloor   int64
	PaymentWindow time.Duration
}

// Handle drives REQUEST_PAYMENT: validate, gate, collect authorization on the
// chosen rail, then confirm the transaction and record the settlement row.
// The pending transaction is committed before the rail is invoked so a failed
// attempt leaves it retryable in PENDING_PAYMENT with no ledger row.
func (h *RequestPaymentHandler) Handle(ctx context.Context, cmd RequestPaymentCommand) (*RequestPaymentResult, error) {
	if err := h.validate(cmd); err != nil {
		return nil, err
	}
	if err := h.verifyCheckout(ctx); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tx, err := h.loadOrCreate(ctx, cmd, now)
	if err != nil {
		return nil, err
	}

	auth, cont, err := h.collect(ctx, cmd, tx)
	if err != nil {
		return nil, err
	}
	if cont != "" {
		// Challenge pending: the caller re-invokes after the user completes it.
		return &RequestPaymentResult{TransactionID: string(tx.ID), State: string(tx.State), RequiresAction: true, Continuation: cont}, nil
	}

	return h.confirm(ctx, tx, auth, now)
}

func (h *RequestPaymentHandler) validate(cmd RequestPaymentCommand) error {
	if cmd.CustomerID == "" || cmd.ProviderID == "" {
		return fault.New(fault.Validation, "parties_required", "customer and provider ids are required")
	}
	if err := domaintx.ValidateLineItems(cmd.LineItems); err != nil {
		return fault.Wrap(fault.Validation, "line_items", err.Error(), err)
	}
	switch cmd.Rail {
	case domaintx.RailCard:
	case domaintx.RailPayPal:
		if !railAllowed(domaintx.RailPayPal, cmd.LineItems, h.paypalFloor()) {
			return fault.New(fault.Validation, "paypal_below_floor", "paypal is not offered for this amount")
		}
	default:
		return fault.New(fault.Validation, "unknown_rail", "unknown payment rail")
	}
	sum, err := cmd.PayoutTotal.Add(cmd.PlatformFee)
	if err != nil {
		return fault.Wrap(fault.Validation, "totals", err.Error(), err)
	}
	if !sum.Equal(cmd.PayinTotal) {
		return fault.New(fault.Validation, "totals", "payout total plus platform fee must equal payin total")
	}
	return nil
}

// verifyCheckout blocks the initial submission when no proof-of-human token
// can be obtained. Later transitions in the same flow degrade gracefully
// instead; this is the one place the gate is hard.
func (h *RequestPaymentHandler) verifyCheckout(ctx context.Context) error {
	if h.Gate == nil {
		return nil
	}
	token, err := h.Gate.Verify(ctx, policies.ActionCheckout)
	if err != nil {
		return fault.Wrap(fault.VerificationRequired, "checkout_verification", "human verification failed for checkout", err)
	}
	if token == "" {
		return fault.New(fault.VerificationRequired, "checkout_verification", "human verification required for checkout")
	}
	return nil
}

func (h *RequestPaymentHandler) loadOrCreate(ctx context.Context, cmd RequestPaymentCommand, now time.Time) (*domaintx.Transaction, error) {
	unit, execCtx, cleanup, commit, err := support.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	if cmd.TxID != "" {
		tx, err := unit.Transactions().ByID(execCtx, domaintx.ID(cmd.TxID))
		if err != nil {
			return nil, err
		}
		if tx.PaymentWindowLapsed(now) {
			if err := tx.ExpirePayment(now); err == nil {
				_ = unit.Transactions().Save(execCtx, tx)
				_ = h.recordEvents(execCtx, tx)
				_ = commit(execCtx)
			}
			return nil, fault.New(fault.Validation, "payment_expired", "payment window expired")
		}
		if tx.State != domaintx.StatePendingPayment {
			return nil, fault.New(fault.Validation, "not_pending", fmt.Sprintf("transaction is %s", tx.State))
		}
		return tx, commit(execCtx)
	}

	window := h.PaymentWindow
	if window <= 0 {
		window = DefaultPaymentWindow
	}
	tx, err := domaintx.New(domaintx.CreateParams{
		ID:              domaintx.ID(cmd.CommandID),
		ListingID:       cmd.ListingID,
		CustomerID:      cmd.CustomerID,
		ProviderID:      cmd.ProviderID,
		LineItems:       cmd.LineItems,
		PayinTotal:      cmd.PayinTotal,
		PayoutTotal:     cmd.PayoutTotal,
		PlatformFee:     cmd.PlatformFee,
		PaymentDeadline: now.Add(window),
		CreatedAt:       now,
	})
	if err != nil {
		return nil, fault.Wrap(fault.Validation, "transaction", err.Error(), err)
	}
	if cmd.DepositPercentage > 0 {
		calc, err := deposit.Calculate(cmd.PayinTotal, cmd.DepositPercentage)
		if err != nil {
			return nil, fault.Wrap(fault.Validation, "deposit", err.Error(), err)
		}
		if err := tx.RequireDeposit(calc); err != nil {
			return nil, err
		}
	}
	if err := unit.Transactions().Save(execCtx, tx); err != nil {
		return nil, err
	}
	if err := h.recordEvents(execCtx, tx); err != nil {
		return nil, err
	}
	return tx, commit(execCtx)
}

// collect runs the rail-specific authorization round trip. A non-empty second
// return means the network demands further user interaction.
func (h *RequestPaymentHandler) collect(ctx context.Context, cmd RequestPaymentCommand, tx *domaintx.Transaction) (domaintx.ProviderAuthorization, string, error) {
	switch cmd.Rail {
	case domaintx.RailCard:
		res, err := h.Card.CollectAuthorization(ctx, policies.CollectCardRequest{
			TransactionID: string(tx.ID),
			CustomerRef:   cmd.CustomerID,
			Amount:        tx.PayinTotal,
			Flow:          cmd.Flow,
			InstrumentRef: cmd.InstrumentRef,
			Description:   cmd.Description,
		})
		if err != nil {
			return domaintx.ProviderAuthorization{}, "", err
		}
		auth := domaintx.ProviderAuthorization{
			Rail:          domaintx.RailCard,
			Kind:          res.Kind,
			IntentRef:     res.IntentRef,
			ChargeRef:     res.ChargeRef,
			InstrumentRef: res.InstrumentRef,
			Status:        res.Status,
		}
		if res.Status == domaintx.AuthRequiresAction {
			return auth, res.Continuation, nil
		}
		return auth, "", nil

	case domaintx.RailPayPal:
		orderRef, err := h.PayPal.CreateOrder(ctx, tx.PayinTotal, cmd.Description)
		if err != nil {
			return domaintx.ProviderAuthorization{}, "", err
		}
		res, err := h.PayPal.Authorize(ctx, orderRef)
		if err != nil {
			return domaintx.ProviderAuthorization{}, "", err
		}
		return domaintx.ProviderAuthorization{
			Rail:             domaintx.RailPayPal,
			Kind:             domaintx.KindPayPalOrder,
			OrderRef:         res.OrderRef,
			AuthorizationRef: res.AuthorizationRef,
			ChargeRef:        res.AuthorizationRef,
			Status:           domaintx.AuthAuthorized,
		}, "", nil
	}
	return domaintx.ProviderAuthorization{}, "", fault.New(fault.Validation, "unknown_rail", "unknown payment rail")
}

func (h *RequestPaymentHandler) confirm(ctx context.Context, tx *domaintx.Transaction, auth domaintx.ProviderAuthorization, now time.Time) (*RequestPaymentResult, error) {
	unit, execCtx, cleanup, commit, err := support.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	// Reload under the unit so confirmation applies to current state; the
	// authorization already exists provider-side either way.
	fresh, err := unit.Transactions().ByID(execCtx, tx.ID)
	if err != nil {
		return nil, err
	}
	if err := fresh.ConfirmPayment(auth, now); err != nil {
		return nil, err
	}

	method := domainledger.MethodStripe
	if auth.Rail == domaintx.RailPayPal {
		method = domainledger.MethodPayPal
	}
	entry := domainledger.Entry{
		ID:             uuid.NewString(),
		TransactionRef: string(fresh.ID),
		Method:         method,
		ChargeRef:      auth.ChargeRef,
		PayerID:        fresh.CustomerID,
		PayeeID:        fresh.ProviderID,
		PayinTotal:     fresh.PayinTotal,
		PayoutTotal:    fresh.PayoutTotal,
		PlatformFee:    fresh.PlatformFee,
		PayoutStatus:   domainledger.PayoutPending,
		CreatedAt:      now,
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	if err := unit.Ledger().Append(execCtx, entry); err != nil {
		return nil, err
	}
	if err := unit.Transactions().Save(execCtx, fresh); err != nil {
		return nil, err
	}
	if err := h.recordEvents(execCtx, fresh); err != nil {
		return nil, err
	}
	if err := commit(execCtx); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("payment confirmed", "transaction_id", fresh.ID, "rail", auth.Rail, "charge_ref", auth.ChargeRef)
	}
	return &RequestPaymentResult{TransactionID: string(fresh.ID), State: string(fresh.State)}, nil
}

func (h *RequestPaymentHandler) recordEvents(ctx context.Context, tx *domaintx.Transaction) error {
	evs := tx.PendingEvents()
	tx.ClearEvents()
	return outbox.RecordDomainEvents(ctx, h.Outbox, h.encoder(), evs)
}

func (h *RequestPaymentHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *RequestPaymentHandler) paypalFloor() int64 {
	if h.PayPalFloor > 0 {
		return h.PayPalFloor
	}
	return DefaultPayPalFloor
}

var _ commands.Handler[RequestPaymentCommand, *RequestPaymentResult] = (*RequestPaymentHandler)(nil)
var _ middleware.IdempotentCommand = (*RequestPaymentCommand)(nil)
var _ middleware.TransactionScoped = (*RequestPaymentCommand)(nil)
