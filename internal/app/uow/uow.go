package uow

import (
	"context"

	domainledger "stayflow/internal/domain/ledger"
	domaintx "stayflow/internal/domain/transaction"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Transactions() domaintx.Repository
	Ledger() domainledger.Recorder

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool

	// HandlerManaged leaves the boundary to the handler. No ambient unit is
	// opened, so a handler can commit between phases and keep provider round
	// trips outside any open database transaction.
	HandlerManaged bool
}
