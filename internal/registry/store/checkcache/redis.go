// Package checkcache caches availability-check answers. A cached "taken"
// or "available" entry tolerates short staleness; mutating flows
// invalidate the affected name inside their own code path.
package checkcache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "check:name:"

// RedisCache is a Redis-backed availability cache shared across instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed cache with the given entry TTL.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get reports the cached availability of a name. ok is false on a miss.
func (c *RedisCache) Get(ctx context.Context, name string) (available bool, ok bool, err error) {
	val, err := c.client.Get(ctx, keyPrefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val == "1", true, nil
}

// Set records the availability of a name.
func (c *RedisCache) Set(ctx context.Context, name string, available bool) error {
	val := "0"
	if available {
		val = "1"
	}
	return c.client.Set(ctx, keyPrefix+name, val, c.ttl).Err()
}

// Invalidate drops the entry for a name after a mutation.
func (c *RedisCache) Invalidate(ctx context.Context, name string) error {
	return c.client.Del(ctx, keyPrefix+name).Err()
}
