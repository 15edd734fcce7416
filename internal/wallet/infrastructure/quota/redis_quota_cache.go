// Package quota caches free-message counts in Redis so the chat hot path
// does not hit PostgreSQL on every message.
package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 5 * time.Minute

// RedisQuotaCache stores free-message counts keyed by user ID. It satisfies
// both the query-side cache and the command-side invalidator.
type RedisQuotaCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisQuotaCache creates a new cache. A zero ttl uses the default.
func NewRedisQuotaCache(client *redis.Client, ttl time.Duration) *RedisQuotaCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisQuotaCache{client: client, ttl: ttl}
}

func quotaKey(userID uuid.UUID) string {
	return fmt.Sprintf("quota:free:%s", userID)
}

// Get returns the cached count, or found=false on a miss.
func (c *RedisQuotaCache) Get(ctx context.Context, userID uuid.UUID) (int, bool, error) {
	val, err := c.client.Get(ctx, quotaKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, err
	}

	used, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, err
	}
	return used, true, nil
}

// Set caches the count with the configured TTL.
func (c *RedisQuotaCache) Set(ctx context.Context, userID uuid.UUID, used int) error {
	return c.client.Set(ctx, quotaKey(userID), used, c.ttl).Err()
}

// Invalidate drops the cached count after the quota changes.
func (c *RedisQuotaCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	return c.client.Del(ctx, quotaKey(userID)).Err()
}
