package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stayflow/internal/domain/ledger"
	"stayflow/internal/domain/shared/money"
)

// LedgerStore keeps settlement rows in Postgres. The unique index on
// (transaction_ref, charge_ref) makes Append idempotent under replay.
type LedgerStore struct {
	pool *pgxpool.Pool
}

func NewLedgerStore(ctx context.Context, dsn string) (*LedgerStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	store := &LedgerStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *LedgerStore) Close() {
	s.pool.Close()
}

func (s *LedgerStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS ledger_entries (
    id               TEXT PRIMARY KEY,
    transaction_ref  TEXT NOT NULL,
    method           TEXT NOT NULL,
    charge_ref       TEXT NOT NULL,
    payout_batch_ref TEXT NOT NULL DEFAULT '',
    payer_id         TEXT NOT NULL,
    payee_id         TEXT NOT NULL,
    payin_amount     BIGINT NOT NULL,
    payout_amount    BIGINT NOT NULL,
    fee_amount       BIGINT NOT NULL,
    currency         TEXT NOT NULL,
    payout_status    TEXT NOT NULL,
    created_at       TIMESTAMPTZ NOT NULL,
    UNIQUE (transaction_ref, charge_ref)
)`)
	if err != nil {
		return fmt.Errorf("postgres: migrate ledger_entries: %w", err)
	}
	return nil
}

func (s *LedgerStore) Append(ctx context.Context, entry ledger.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO ledger_entries
    (id, transaction_ref, method, charge_ref, payout_batch_ref, payer_id, payee_id,
     payin_amount, payout_amount, fee_amount, currency, payout_status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (transaction_ref, charge_ref) DO NOTHING`,
		entry.ID, entry.TransactionRef, string(entry.Method), entry.ChargeRef,
		entry.PayoutBatchRef, entry.PayerID, entry.PayeeID,
		entry.PayinTotal.Amount, entry.PayoutTotal.Amount, entry.PlatformFee.Amount,
		entry.PayinTotal.Currency, string(entry.PayoutStatus), createdAt)
	if err != nil {
		return fmt.Errorf("postgres: append ledger entry: %w", err)
	}
	return nil
}

func (s *LedgerStore) ByChargeRef(ctx context.Context, txRef, chargeRef string) (*ledger.Entry, error) {
	row := s.pool.QueryRow(ctx, selectEntry+` WHERE transaction_ref = $1 AND charge_ref = $2`, txRef, chargeRef)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrEntryNotFound
		}
		return nil, err
	}
	return entry, nil
}

func (s *LedgerStore) ListByTransaction(ctx context.Context, txRef string) ([]ledger.Entry, error) {
	rows, err := s.pool.Query(ctx, selectEntry+` WHERE transaction_ref = $1 ORDER BY created_at`, txRef)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func (s *LedgerStore) UpdatePayoutStatus(ctx context.Context, id string, expected, next ledger.PayoutStatus, payoutBatchRef string) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE ledger_entries
SET payout_status = $1,
    payout_batch_ref = CASE WHEN $2 <> '' THEN $2 ELSE payout_batch_ref END
WHERE id = $3 AND payout_status = $4`,
		string(next), payoutBatchRef, id, string(expected))
	if err != nil {
		return fmt.Errorf("postgres: update payout status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ledger.ErrEntryNotFound
		}
		return ledger.ErrStaleUpdate
	}
	return nil
}

const selectEntry = `
SELECT id, transaction_ref, method, charge_ref, payout_batch_ref, payer_id, payee_id,
       payin_amount, payout_amount, fee_amount, currency, payout_status, created_at
FROM ledger_entries`

func scanEntry(row pgx.Row) (*ledger.Entry, error) {
	var (
		entry                    ledger.Entry
		method, status, currency string
		payin, payout, fee       int64
	)
	err := row.Scan(&entry.ID, &entry.TransactionRef, &method, &entry.ChargeRef,
		&entry.PayoutBatchRef, &entry.PayerID, &entry.PayeeID,
		&payin, &payout, &fee, &currency, &status, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	entry.Method = ledger.PaymentMethod(method)
	entry.PayoutStatus = ledger.PayoutStatus(status)
	entry.PayinTotal = money.Money{Amount: payin, Currency: currency}
	entry.PayoutTotal = money.Money{Amount: payout, Currency: currency}
	entry.PlatformFee = money.Money{Amount: fee, Currency: currency}
	return &entry, nil
}

var _ ledger.Recorder = (*LedgerStore)(nil)
