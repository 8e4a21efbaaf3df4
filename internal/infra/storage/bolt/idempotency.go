package bolt

import (
	"context"
	"encoding/json"
	"time"

	bolt "github.com/boltdb/bolt"

	"stayflow/internal/app/middleware"
)

const idempotencyBucket = "idempotency"

// IdempotencyStore persists command results in an embedded BoltDB file, so a
// replayed command survives process restarts without an external database.
type IdempotencyStore struct {
	db  *bolt.DB
	ttl time.Duration
}

func NewIdempotencyStore(path string, ttl time.Duration) (*IdempotencyStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(idempotencyBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &IdempotencyStore{db: db, ttl: ttl}, nil
}

func (s *IdempotencyStore) Close() error { return s.db.Close() }

func (s *IdempotencyStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	var rec middleware.IdempotencyRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(idempotencyBucket)).Get([]byte(key))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &rec); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	if found && s.ttl > 0 && time.Since(rec.OccurredAt) > s.ttl {
		// Expired record: the command may run again.
		return middleware.IdempotencyRecord{}, false, nil
	}
	return rec, found, nil
}

func (s *IdempotencyStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(idempotencyBucket)).Put([]byte(rec.Key), payload)
	})
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
