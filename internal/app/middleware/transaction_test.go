package middleware

import (
	"context"
	"testing"

	"stayflow/internal/app/commands"
	"stayflow/internal/app/uow"
	domainledger "stayflow/internal/domain/ledger"
	domaintx "stayflow/internal/domain/transaction"
)

type railCommand struct{}

func (c railCommand) Key() string { return "test.rail" }

type plainCommand struct{}

func (c plainCommand) Key() string { return "test.plain" }

type countingFactory struct {
	begun int
}

func (f *countingFactory) Begin(_ context.Context, _ uow.TxOptions) (uow.UnitOfWork, error) {
	f.begun++
	return countingUnit{}, nil
}

type countingUnit struct{}

func (countingUnit) Transactions() domaintx.Repository { return nil }
func (countingUnit) Ledger() domainledger.Recorder     { return nil }
func (countingUnit) Commit(context.Context) error      { return nil }
func (countingUnit) Rollback(context.Context) error    { return nil }

func TestTransactionSkipsHandlerManagedCommands(t *testing.T) {
	bus := commands.NewInMemoryBus()
	var sawAmbient bool
	bus.RegisterRaw("test.rail", func(ctx context.Context, _ commands.Command) (any, error) {
		_, sawAmbient = uow.FromContext(ctx)
		return "ok", nil
	})

	factory := &countingFactory{}
	opts := func(cmd commands.Command) uow.TxOptions {
		return uow.TxOptions{HandlerManaged: cmd.Key() == "test.rail"}
	}
	wrapped := ChainCommands(bus, Transaction(factory, opts))

	if _, err := wrapped.Dispatch(context.Background(), railCommand{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if factory.begun != 0 {
		t.Errorf("begun = %d, want no unit for a handler-managed command", factory.begun)
	}
	if sawAmbient {
		t.Error("ambient unit leaked into a handler-managed command")
	}
}

func TestTransactionWrapsOtherCommands(t *testing.T) {
	bus := commands.NewInMemoryBus()
	var sawAmbient bool
	bus.RegisterRaw("test.plain", func(ctx context.Context, _ commands.Command) (any, error) {
		_, sawAmbient = uow.FromContext(ctx)
		return "ok", nil
	})

	factory := &countingFactory{}
	opts := func(cmd commands.Command) uow.TxOptions {
		return uow.TxOptions{HandlerManaged: cmd.Key() == "test.rail"}
	}
	wrapped := ChainCommands(bus, Transaction(factory, opts))

	if _, err := wrapped.Dispatch(context.Background(), plainCommand{}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if factory.begun != 1 {
		t.Errorf("begun = %d, want 1", factory.begun)
	}
	if !sawAmbient {
		t.Error("expected an ambient unit for a regular command")
	}
}
