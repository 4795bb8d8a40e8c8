package quota

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis bucket keys live past their day so a request arriving just before
// midnight still sees the old bucket, then age out.
const redisBucketTTL = 48 * time.Hour

// RedisStore keeps the daily counters in Redis, using INCR for lock-free
// atomic increments.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed quota store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func bucketKey(apiKeyID, method string, day time.Time) string {
	return fmt.Sprintf("quota:%s:%s:%s", apiKeyID, strings.ToUpper(method), Day(day).Format("2006-01-02"))
}

func (s *RedisStore) Count(ctx context.Context, apiKeyID, method string, day time.Time) (int, error) {
	n, err := s.client.Get(ctx, bucketKey(apiKeyID, method, day)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

func (s *RedisStore) Increment(ctx context.Context, apiKeyID, method string, day time.Time) (int, error) {
	key := bucketKey(apiKeyID, method, day)
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		// New bucket: bound its lifetime. Best-effort, the key is
		// harmless if the expire call fails.
		_ = s.client.Expire(ctx, key, redisBucketTTL).Err()
	}
	return int(n), nil
}
