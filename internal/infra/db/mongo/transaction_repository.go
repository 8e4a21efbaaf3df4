package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stayflow/internal/domain/shared/money"
	domaintx "stayflow/internal/domain/transaction"
)

type TransactionRepository struct {
	col *mongo.Collection
}

func NewTransactionRepository(db *mongo.Database) *TransactionRepository {
	col := db.Collection("agg_transaction")
	idx := mongo.IndexModel{Keys: bson.D{{Key: "state", Value: 1}, {Key: "payment_deadline", Value: 1}}}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &TransactionRepository{col: col}
}

func (r *TransactionRepository) ByID(ctx context.Context, id domaintx.ID) (*domaintx.Transaction, error) {
	var doc transactionDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaintx.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *TransactionRepository) Save(ctx context.Context, tx *domaintx.Transaction) error {
	doc := newTransactionDocument(tx)
	filter := bson.M{"_id": doc.ID, "version": tx.Version}
	doc.Version = tx.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domaintx.ErrVersionConflict
		}
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domaintx.ErrVersionConflict
	}
	tx.Version = doc.Version
	return nil
}

func (r *TransactionRepository) ListByCustomer(ctx context.Context, customerID string) ([]*domaintx.Transaction, error) {
	cursor, err := r.col.Find(ctx, bson.M{"customer_id": customerID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cursor)
}

func (r *TransactionRepository) ListPendingPaymentBefore(ctx context.Context, deadline time.Time) ([]*domaintx.Transaction, error) {
	filter := bson.M{
		"state":            string(domaintx.StatePendingPayment),
		"payment_deadline": bson.M{"$gt": 0, "$lt": deadline.UnixMilli()},
	}
	cursor, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cursor)
}

func decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]*domaintx.Transaction, error) {
	defer cursor.Close(ctx)
	var out []*domaintx.Transaction
	for cursor.Next(ctx) {
		var doc transactionDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cursor.Err()
}

type lineItemDocument struct {
	Code      string      `bson:"code"`
	UnitPrice money.Money `bson:"unit_price"`
	Quantity  int64       `bson:"quantity"`
	LineTotal money.Money `bson:"line_total"`
	Reversal  bool        `bson:"reversal"`
}

type depositDocument struct {
	PercentageValue int64       `bson:"percentage_value"`
	DepositAmount   money.Money `bson:"deposit_amount"`
	TransferAmount  money.Money `bson:"transfer_amount"`
	Status          string      `bson:"status"`
	ChargeRef       string      `bson:"charge_ref"`
}

type authorizationDocument struct {
	Rail             string `bson:"rail"`
	Kind             string `bson:"kind"`
	IntentRef        string `bson:"intent_ref"`
	OrderRef         string `bson:"order_ref"`
	AuthorizationRef string `bson:"authorization_ref"`
	ChargeRef        string `bson:"charge_ref"`
	InstrumentRef    string `bson:"instrument_ref"`
	Status           string `bson:"status"`
}

type transactionDocument struct {
	ID              string                 `bson:"_id"`
	ListingID       string                 `bson:"listing_id"`
	CustomerID      string                 `bson:"customer_id"`
	ProviderID      string                 `bson:"provider_id"`
	State           string                 `bson:"state"`
	LineItems       []lineItemDocument     `bson:"line_items"`
	PayinTotal      money.Money            `bson:"payin_total"`
	PayoutTotal     money.Money            `bson:"payout_total"`
	PlatformFee     money.Money            `bson:"platform_fee"`
	Deposit         depositDocument        `bson:"deposit"`
	Authorization   *authorizationDocument `bson:"authorization,omitempty"`
	PayoutsDisabled bool                   `bson:"payouts_disabled"`
	PaymentDeadline int64                  `bson:"payment_deadline"`
	CreatedAt       int64                  `bson:"created_at"`
	UpdatedAt       int64                  `bson:"updated_at"`
	Version         int64                  `bson:"version"`
}

func newTransactionDocument(tx *domaintx.Transaction) transactionDocument {
	items := make([]lineItemDocument, 0, len(tx.LineItems))
	for _, it := range tx.LineItems {
		items = append(items, lineItemDocument{
			Code:      it.Code,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal,
			Reversal:  it.Reversal,
		})
	}
	doc := transactionDocument{
		ID:          string(tx.ID),
		ListingID:   tx.ListingID,
		CustomerID:  tx.CustomerID,
		ProviderID:  tx.ProviderID,
		State:       string(tx.State),
		LineItems:   items,
		PayinTotal:  tx.PayinTotal,
		PayoutTotal: tx.PayoutTotal,
		PlatformFee: tx.PlatformFee,
		Deposit: depositDocument{
			PercentageValue: tx.Deposit.PercentageValue,
			DepositAmount:   tx.Deposit.DepositAmount,
			TransferAmount:  tx.Deposit.TransferAmount,
			Status:          string(tx.Deposit.Status),
			ChargeRef:       tx.Deposit.ChargeRef,
		},
		PayoutsDisabled: tx.PayoutsDisabled,
		CreatedAt:       tx.CreatedAt.UnixMilli(),
		UpdatedAt:       tx.UpdatedAt.UnixMilli(),
		Version:         tx.Version,
	}
	if !tx.PaymentDeadline.IsZero() {
		doc.PaymentDeadline = tx.PaymentDeadline.UnixMilli()
	}
	if tx.Authorization != nil {
		doc.Authorization = &authorizationDocument{
			Rail:             string(tx.Authorization.Rail),
			Kind:             string(tx.Authorization.Kind),
			IntentRef:        tx.Authorization.IntentRef,
			OrderRef:         tx.Authorization.OrderRef,
			AuthorizationRef: tx.Authorization.AuthorizationRef,
			ChargeRef:        tx.Authorization.ChargeRef,
			InstrumentRef:    tx.Authorization.InstrumentRef,
			Status:           string(tx.Authorization.Status),
		}
	}
	return doc
}

func (d transactionDocument) toAggregate() *domaintx.Transaction {
	items := make([]domaintx.LineItem, 0, len(d.LineItems))
	for _, it := range d.LineItems {
		items = append(items, domaintx.LineItem{
			Code:      it.Code,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal,
			Reversal:  it.Reversal,
		})
	}
	tx := &domaintx.Transaction{
		ID:          domaintx.ID(d.ID),
		ListingID:   d.ListingID,
		CustomerID:  d.CustomerID,
		ProviderID:  d.ProviderID,
		State:       domaintx.ProcessState(d.State),
		LineItems:   items,
		PayinTotal:  d.PayinTotal,
		PayoutTotal: d.PayoutTotal,
		PlatformFee: d.PlatformFee,
		Deposit: domaintx.SecurityDeposit{
			PercentageValue: d.Deposit.PercentageValue,
			DepositAmount:   d.Deposit.DepositAmount,
			TransferAmount:  d.Deposit.TransferAmount,
			Status:          domaintx.DepositStatus(d.Deposit.Status),
			ChargeRef:       d.Deposit.ChargeRef,
		},
		PayoutsDisabled: d.PayoutsDisabled,
		CreatedAt:       time.UnixMilli(d.CreatedAt).UTC(),
		UpdatedAt:       time.UnixMilli(d.UpdatedAt).UTC(),
		Version:         d.Version,
	}
	if d.PaymentDeadline > 0 {
		tx.PaymentDeadline = time.UnixMilli(d.PaymentDeadline).UTC()
	}
	if d.Authorization != nil {
		tx.Authorization = &domaintx.ProviderAuthorization{
			Rail:             domaintx.Rail(d.Authorization.Rail),
			Kind:             domaintx.AuthorizationKind(d.Authorization.Kind),
			IntentRef:        d.Authorization.IntentRef,
			OrderRef:         d.Authorization.OrderRef,
			AuthorizationRef: d.Authorization.AuthorizationRef,
			ChargeRef:        d.Authorization.ChargeRef,
			InstrumentRef:    d.Authorization.InstrumentRef,
			Status:           domaintx.AuthorizationStatus(d.Authorization.Status),
		}
	}
	return tx
}

var _ domaintx.Repository = (*TransactionRepository)(nil)
