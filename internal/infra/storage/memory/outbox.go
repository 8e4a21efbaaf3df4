package memory

import (
	"context"
	"sync"

	"stayflow/internal/app/outbox"
)

// Outbox buffers event records in memory. Flush hands them to the sink; when
// no sink is configured records accumulate until read by Records.
type Outbox struct {
	mu      sync.Mutex
	pending []outbox.EventRecord
	flushed []outbox.EventRecord
	Sink    func(ctx context.Context, records []outbox.EventRecord) error
}

func NewOutbox() *Outbox { return &Outbox{} }

func (o *Outbox) Add(_ context.Context, record outbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	batch := o.pending
	o.pending = nil
	o.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}
	if o.Sink != nil {
		if err := o.Sink(ctx, batch); err != nil {
			o.mu.Lock()
			o.pending = append(batch, o.pending...)
			o.mu.Unlock()
			return err
		}
	}
	o.mu.Lock()
	o.flushed = append(o.flushed, batch...)
	o.mu.Unlock()
	return nil
}

// Records returns everything flushed so far.
func (o *Outbox) Records() []outbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]outbox.EventRecord(nil), o.flushed...)
}

var _ outbox.Outbox = (*Outbox)(nil)
