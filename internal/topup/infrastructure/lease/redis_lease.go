// Package lease implements the per-user topup lease on Redis.
package lease

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLease serializes topup processing per user with SET NX + TTL. A held
// lease means another run is (or recently was) processing the user.
type RedisLease struct {
	client *redis.Client
}

// NewRedisLease creates a new lease store.
func NewRedisLease(client *redis.Client) *RedisLease {
	return &RedisLease{client: client}
}

func leaseKey(userID uuid.UUID) string {
	return "topup:lease:" + userID.String()
}

// Acquire takes the user's lease, or reports false when it is held.
func (l *RedisLease) Acquire(ctx context.Context, userID uuid.UUID, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, leaseKey(userID), 1, ttl).Result()
}

// Release drops the user's lease.
func (l *RedisLease) Release(ctx context.Context, userID uuid.UUID) error {
	return l.client.Del(ctx, leaseKey(userID)).Err()
}
