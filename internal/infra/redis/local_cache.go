package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"scenario-quiz-service/internal/domain"
)

// LocalCache is the server-side fast cache for progress and settings.
// Keys live under quiz:cache: and expire after ttl (0 keeps them forever).
type LocalCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLocalCache(client *redis.Client, ttl time.Duration) *LocalCache {
	return &LocalCache{client: client, ttl: ttl}
}

func (c *LocalCache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.client.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrCacheMiss
	}
	return v, err
}

func (c *LocalCache) Set(ctx context.Context, key, value string) error {
	return c.client.Set(ctx, c.key(key), value, c.ttl).Err()
}

func (c *LocalCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

func (c *LocalCache) key(key string) string {
	return "quiz:cache:" + key
}
