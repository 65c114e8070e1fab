package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smschat/server/internal/model"
)

// RedisCache stores per-owner message lists as JSON values with a TTL.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache creates a RedisCache around an existing client.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func listKey(owner string) string {
	return "messages:" + owner
}

// GetList returns the cached list for an owner. Any Redis or decode error is
// logged and reported as a miss.
func (c *RedisCache) GetList(ctx context.Context, owner string) ([]model.Message, bool) {
	raw, err := c.rdb.Get(ctx, listKey(owner)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("cache: get failed for owner %q: %v", owner, err)
		}
		return nil, false
	}

	var messages []model.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		log.Printf("cache: corrupt entry for owner %q: %v", owner, err)
		return nil, false
	}
	return messages, true
}

func (c *RedisCache) SetList(ctx context.Context, owner string, messages []model.Message) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, listKey(owner), raw, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, owner string) error {
	return c.rdb.Del(ctx, listKey(owner)).Err()
}
