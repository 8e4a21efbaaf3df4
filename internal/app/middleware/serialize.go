package middleware

import (
	"context"
	"sync"

	"stayflow/internal/app/commands"
	"stayflow/internal/domain/shared/fault"
)

// TransactionScoped is implemented by commands whose transitions must be
// serialized per transaction id.
type TransactionScoped interface {
	commands.Command
	TransactionID() string
}

// Serialize rejects a transition request while another one is in flight for
// the same transaction id. Rejection is immediate; requests are never queued.
func Serialize() CommandMiddleware {
	var mu sync.Mutex
	inFlight := make(map[string]struct{})

	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			scoped, ok := cmd.(TransactionScoped)
			if !ok || scoped.TransactionID() == "" {
				return nextFn(ctx, cmd)
			}
			id := scoped.TransactionID()

			mu.Lock()
			if _, busy := inFlight[id]; busy {
				mu.Unlock()
				return nil, fault.New(fault.ConcurrencyConflict, "transition_in_progress", "a transition is already in progress for this transaction")
			}
			inFlight[id] = struct{}{}
			mu.Unlock()

			defer func() {
				mu.Lock()
				delete(inFlight, id)
				mu.Unlock()
			}()
			return nextFn(ctx, cmd)
		})
	}
}
