package memory

import (
	"context"

	"stayflow/internal/app/uow"
	domainledger "stayflow/internal/domain/ledger"
	domaintx "stayflow/internal/domain/transaction"
)

// UoWFactory hands out units of work over shared in-memory stores. There is
// no real transaction boundary; Commit and Rollback are no-ops, which is fine
// for tests and single-process runs.
type UoWFactory struct {
	Transactions *TransactionRepository
	Ledger       *LedgerRecorder
}

func NewUoWFactory() *UoWFactory {
	return &UoWFactory{
		Transactions: NewTransactionRepository(),
		Ledger:       NewLedgerRecorder(),
	}
}

func (f *UoWFactory) Begin(_ context.Context, _ uow.TxOptions) (uow.UnitOfWork, error) {
	return &unitOfWork{factory: f}, nil
}

type unitOfWork struct {
	factory *UoWFactory
}

func (u *unitOfWork) Transactions() domaintx.Repository { return u.factory.Transactions }
func (u *unitOfWork) Ledger() domainledger.Recorder     { return u.factory.Ledger }
func (u *unitOfWork) Commit(_ context.Context) error    { return nil }
func (u *unitOfWork) Rollback(_ context.Context) error  { return nil }

var _ uow.UoWFactory = (*UoWFactory)(nil)
