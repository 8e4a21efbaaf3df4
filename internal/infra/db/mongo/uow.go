package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stayflow/internal/app/uow"
	domainledger "stayflow/internal/domain/ledger"
	domaintx "stayflow/internal/domain/transaction"
)

// Factory wires Mongo sessions into the generic UnitOfWork interface. The
// ledger recorder lives in Postgres, outside the Mongo session; ledger
// appends stay safe because they are idempotent on (transaction_ref,
// charge_ref).
type Factory struct {
	DB *mongo.Database

	TransactionRepo domaintx.Repository
	LedgerRepo      domainledger.Recorder
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(f.DB.ReadConcern()).SetWriteConcern(f.DB.WriteConcern())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		db:           f.DB,
		session:      session,
		transactions: f.TransactionRepo,
		ledger:       f.LedgerRepo,
	}, nil
}

type Unit struct {
	db      *mongo.Database
	session mongo.Session

	transactions domaintx.Repository
	ledger       domainledger.Recorder
}

func (u *Unit) Transactions() domaintx.Repository {
	return u.transactions
}

func (u *Unit) Ledger() domainledger.Recorder {
	return u.ledger
}

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures the Mongo session is available in context for
// downstream repositories.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.UoWFactory = Factory{}
