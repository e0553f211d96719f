package timeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gogotex/gogotex/backend/go-history/internal/history"
)

// Cache keeps rendered timelines between mutations of a document.
type Cache interface {
	Get(ctx context.Context, id any) ([]history.ChangeRecord, bool, error)
	Set(ctx context.Context, id any, records []history.ChangeRecord) error
	Invalidate(ctx context.Context, id any) error
}

// RedisCache stores timelines as JSON under "<prefix><history.IDKey(id)>"
// with a TTL.
// Entries are dropped on every successful mutation; the TTL bounds how long a
// timeline rendered concurrently with a mutation can outlive it.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed timeline cache. Prefix may be empty.
func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "timeline:"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(id any) string {
	return c.prefix + history.IDKey(id)
}

func (c *RedisCache) Get(ctx context.Context, id any) ([]history.ChangeRecord, bool, error) {
	b, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	var out []history.ChangeRecord
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (c *RedisCache) Set(ctx context.Context, id any, records []history.ChangeRecord) error {
	b, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(id), b, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, id any) error {
	return c.client.Del(ctx, c.key(id)).Err()
}
