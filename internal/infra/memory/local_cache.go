package memory

import (
	"context"
	"sync"

	"scenario-quiz-service/internal/domain"
)

// LocalCache is an in-process key/value cache implementing app.LocalCache.
type LocalCache struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewLocalCache() *LocalCache {
	return &LocalCache{data: make(map[string]string)}
}

func (c *LocalCache) Get(_ context.Context, key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	if !ok {
		return "", domain.ErrCacheMiss
	}
	return v, nil
}

func (c *LocalCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *LocalCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}
