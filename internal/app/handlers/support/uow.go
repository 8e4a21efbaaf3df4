package support

import (
	"context"

	"stayflow/internal/app/uow"
)

// BeginUnit reuses a unit of work from context or starts a managed one. The
// returned cleanup rolls back a managed unit unless commit was called.
func BeginUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), func(context.Context) error, error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, nil, func(context.Context) error { return nil }, nil
	}
	if factory == nil {
		return nil, ctx, nil, nil, uow.ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, ctx, nil, nil, err
	}
	execCtx := uow.ContextWithUnitOfWork(ctx, unit)
	committed := false
	cleanup := func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}
	commit := func(c context.Context) error {
		if err := unit.Commit(c); err != nil {
			return err
		}
		committed = true
		return nil
	}
	return unit, execCtx, cleanup, commit, nil
}

// BeginReadOnlyUnit starts a read-only unit of work when none is in context.
func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return unit, ctx, nil, nil
	}
	if factory == nil {
		return nil, ctx, nil, uow.ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, err
	}
	execCtx := uow.ContextWithUnitOfWork(ctx, unit)
	cleanup := func() { _ = unit.Rollback(execCtx) }
	return unit, execCtx, cleanup, nil
}
