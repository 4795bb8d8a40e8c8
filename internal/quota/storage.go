package quota

import (
	"context"
	"time"

	"github.com/sheetserve/sheetserve/internal/storage"
)

// StorageStore backs the counters with the durable store's atomic
// upsert-increment.
type StorageStore struct {
	store storage.Storage
}

// NewStorageStore creates a quota store on top of the primary storage.
func NewStorageStore(store storage.Storage) *StorageStore {
	return &StorageStore{store: store}
}

func (s *StorageStore) Count(ctx context.Context, apiKeyID, method string, day time.Time) (int, error) {
	return s.store.RateLimitCount(ctx, apiKeyID, method, day)
}

func (s *StorageStore) Increment(ctx context.Context, apiKeyID, method string, day time.Time) (int, error) {
	return s.store.IncrementRateLimit(ctx, apiKeyID, method, day)
}
