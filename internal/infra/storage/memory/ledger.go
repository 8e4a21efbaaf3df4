package memory

import (
	"context"
	"sort"
	"sync"

	"stayflow/internal/domain/ledger"
)

// LedgerRecorder is a map-backed settlement store. Appends are idempotent on
// (TransactionRef, ChargeRef), matching the postgres unique constraint.
type LedgerRecorder struct {
	mu      sync.RWMutex
	entries map[string]ledger.Entry
	byRef   map[string]string // txRef + "/" + chargeRef -> entry id
}

func NewLedgerRecorder() *LedgerRecorder {
	return &LedgerRecorder{
		entries: make(map[string]ledger.Entry),
		byRef:   make(map[string]string),
	}
}

func refKey(txRef, chargeRef string) string { return txRef + "/" + chargeRef }

func (r *LedgerRecorder) Append(_ context.Context, entry ledger.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byRef[refKey(entry.TransactionRef, entry.ChargeRef)]; exists {
		return nil
	}
	r.entries[entry.ID] = entry
	r.byRef[refKey(entry.TransactionRef, entry.ChargeRef)] = entry.ID
	return nil
}

func (r *LedgerRecorder) ByChargeRef(_ context.Context, txRef, chargeRef string) (*ledger.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byRef[refKey(txRef, chargeRef)]
	if !ok {
		return nil, ledger.ErrEntryNotFound
	}
	entry := r.entries[id]
	return &entry, nil
}

func (r *LedgerRecorder) ListByTransaction(_ context.Context, txRef string) ([]ledger.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ledger.Entry
	for _, e := range r.entries {
		if e.TransactionRef == txRef {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *LedgerRecorder) UpdatePayoutStatus(_ context.Context, id string, expected, next ledger.PayoutStatus, payoutBatchRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return ledger.ErrEntryNotFound
	}
	if entry.PayoutStatus != expected {
		return ledger.ErrStaleUpdate
	}
	entry.PayoutStatus = next
	if payoutBatchRef != "" {
		entry.PayoutBatchRef = payoutBatchRef
	}
	r.entries[id] = entry
	return nil
}

var _ ledger.Recorder = (*LedgerRecorder)(nil)
