package statusstore

import (
	"context"
	"time"

	wbfredis "github.com/wb-go/wbf/redis"
	"github.com/wb-go/wbf/retry"
)

// RedisCache adapts the teacher's wbf/redis client to the cache interface
// this package needs. The teacher's own SetWithRetry/GetWithRetry wrapper
// methods take no TTL, so the TTL'd writes spec.md §4.1/§6 requires are
// built directly on the client's embedded go-redis v8 Cmdable methods
// (Set, SetNX) instead, retried by hand with retry.Do the same way the
// teacher's wrapper retries internally.
type RedisCache struct {
	Client *wbfredis.Client
}

// NewRedisCache builds a RedisCache over an already-connected wbf/redis
// client, constructed the same way the teacher's main.go builds one
// (redis.New(address, password, db)).
func NewRedisCache(client *wbfredis.Client) *RedisCache {
	return &RedisCache{Client: client}
}

func (r *RedisCache) GetWithRetry(ctx context.Context, strategy retry.Strategy, key string) (string, error) {
	return r.Client.GetWithRetry(ctx, strategy, key)
}

// SetWithRetry issues SET key value EX ttl, retrying transient errors with
// strategy. It does not delegate to the client's own SetWithRetry, which
// carries no TTL parameter.
func (r *RedisCache) SetWithRetry(ctx context.Context, strategy retry.Strategy, key string, value interface{}, ttl time.Duration) error {
	return retry.Do(func() error {
		return r.Client.Client.Set(ctx, key, value, ttl).Err()
	}, strategy)
}

// SetNXWithRetry issues SET key value NX EX ttl, retrying transient errors
// with strategy.
func (r *RedisCache) SetNXWithRetry(ctx context.Context, strategy retry.Strategy, key string, value interface{}, ttl time.Duration) (bool, error) {
	var accepted bool

	err := retry.Do(func() error {
		ok, err := r.Client.SetNX(ctx, key, value, ttl).Result()
		if err != nil {
			return err
		}
		accepted = ok
		return nil
	}, strategy)

	return accepted, err
}
