package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domaintx "stayflow/internal/domain/transaction"
)

// TransactionRepository is a map-backed repository with the same optimistic
// versioning behavior as the mongo implementation. Used in tests and for
// local runs without a database.
type TransactionRepository struct {
	mu   sync.RWMutex
	byID map[domaintx.ID]*domaintx.Transaction
}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{byID: make(map[domaintx.ID]*domaintx.Transaction)}
}

func (r *TransactionRepository) ByID(_ context.Context, id domaintx.ID) (*domaintx.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tx, ok := r.byID[id]
	if !ok {
		return nil, domaintx.ErrNotFound
	}
	return cloneTransaction(tx), nil
}

func (r *TransactionRepository) Save(_ context.Context, tx *domaintx.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[tx.ID]
	if ok && current.Version != tx.Version {
		return domaintx.ErrVersionConflict
	}
	stored := cloneTransaction(tx)
	stored.Version++
	r.byID[tx.ID] = stored
	tx.Version = stored.Version
	return nil
}

func (r *TransactionRepository) ListByCustomer(_ context.Context, customerID string) ([]*domaintx.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domaintx.Transaction
	for _, tx := range r.byID {
		if tx.CustomerID == customerID {
			out = append(out, cloneTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *TransactionRepository) ListPendingPaymentBefore(_ context.Context, deadline time.Time) ([]*domaintx.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domaintx.Transaction
	for _, tx := range r.byID {
		if tx.State == domaintx.StatePendingPayment && !tx.PaymentDeadline.IsZero() && tx.PaymentDeadline.Before(deadline) {
			out = append(out, cloneTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaymentDeadline.Before(out[j].PaymentDeadline) })
	return out, nil
}

func cloneTransaction(tx *domaintx.Transaction) *domaintx.Transaction {
	cp := *tx
	cp.LineItems = append([]domaintx.LineItem(nil), tx.LineItems...)
	if tx.Authorization != nil {
		auth := *tx.Authorization
		cp.Authorization = &auth
	}
	cp.ClearEvents()
	return &cp
}

var _ domaintx.Repository = (*TransactionRepository)(nil)
