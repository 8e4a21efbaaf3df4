package policies

import "context"

// Notifier informs the notification dispatcher after a transition. Calls are
// fire-and-forget: failures are logged by the implementation and never roll
// back the transition that triggered them.
type Notifier interface {
	Notify(ctx context.Context, eventCode string, transactionID string, params map[string]any)
}
