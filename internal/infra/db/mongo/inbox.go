package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"stayflow/internal/infra/inbox"
)

// InboxStore deduplicates inbound provider events by their delivery id.
type InboxStore struct {
	col *mongo.Collection
}

func NewInboxStore(db *mongo.Database) *InboxStore {
	return &InboxStore{col: db.Collection("provider_inbox")}
}

type inboxDocument struct {
	ID     string `bson:"_id"`
	SeenAt int64  `bson:"seen_at"`
}

// MarkSeen records the event id and reports whether this delivery is the
// first one. A duplicate key means the event was already processed.
func (s *InboxStore) MarkSeen(ctx context.Context, id string) (bool, error) {
	doc := inboxDocument{ID: id, SeenAt: time.Now().UnixMilli()}
	_, err := s.col.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Purge removes inbox entries older than the provided cutoff.
func (s *InboxStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.col.DeleteMany(ctx, bson.M{"seen_at": bson.M{"$lt": before.UnixMilli()}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

var _ inbox.Store = (*InboxStore)(nil)
