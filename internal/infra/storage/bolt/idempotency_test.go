package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"stayflow/internal/app/middleware"
)

func openStore(t *testing.T, ttl time.Duration) *IdempotencyStore {
	t.Helper()
	store, err := NewIdempotencyStore(filepath.Join(t.TempDir(), "idem.db"), ttl)
	if err != nil {
		t.Fatalf("NewIdempotencyStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	store := openStore(t, 0)
	ctx := context.Background()

	if _, found, err := store.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("Get missing = found=%v err=%v", found, err)
	}

	rec := middleware.IdempotencyRecord{
		Key:        "cmd-1",
		Payload:    []byte(`{"transaction_id":"tx-1"}`),
		OccurredAt: time.Now().UTC(),
	}
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, found, err := store.Get(ctx, "cmd-1")
	if err != nil || !found {
		t.Fatalf("Get = found=%v err=%v", found, err)
	}
	if string(got.Payload) != string(rec.Payload) {
		t.Fatalf("payload = %s", got.Payload)
	}
}

func TestExpiredRecordIsNotReturned(t *testing.T) {
	store := openStore(t, time.Minute)
	ctx := context.Background()

	rec := middleware.IdempotencyRecord{
		Key:        "cmd-old",
		Payload:    []byte("{}"),
		OccurredAt: time.Now().Add(-time.Hour),
	}
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, found, err := store.Get(ctx, "cmd-old"); err != nil || found {
		t.Fatalf("Get expired = found=%v err=%v, want not found", found, err)
	}
}
