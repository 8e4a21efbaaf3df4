package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"stayflow/internal/app/policies"
)

const dispatchTopic = "notifications.dispatch.v1"

// Publisher is satisfied by the Kafka producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Dispatcher hands transition notifications to the downstream dispatch
// pipeline. Delivery is best effort: a publish failure is logged and the
// triggering transition is never rolled back.
type Dispatcher struct {
	Publisher Publisher
	Logger    *slog.Logger
}

type dispatchMessage struct {
	ID            string         `json:"id"`
	EventCode     string         `json:"event_code"`
	TransactionID string         `json:"transaction_id"`
	Params        map[string]any `json:"params,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

func (d Dispatcher) Notify(ctx context.Context, eventCode string, transactionID string, params map[string]any) {
	msg := dispatchMessage{
		ID:            uuid.NewString(),
		EventCode:     eventCode,
		TransactionID: transactionID,
		Params:        params,
		OccurredAt:    time.Now().UTC(),
	}
	if d.Publisher == nil {
		d.Logger.Info("notification dispatched (log only)", "event_code", eventCode, "transaction_id", transactionID)
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		d.Logger.Error("notification encode failed", "event_code", eventCode, "error", err)
		return
	}
	headers := map[string]string{"event_code": eventCode}
	if err := d.Publisher.Publish(ctx, dispatchTopic, transactionID, payload, headers); err != nil {
		d.Logger.Error("notification publish failed", "event_code", eventCode, "transaction_id", transactionID, "error", err)
		return
	}
	d.Logger.Debug("notification dispatched", "event_code", eventCode, "transaction_id", transactionID)
}

var _ policies.Notifier = Dispatcher{}
