package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// lockNamespace prefixes every lock key so locks never collide with session keys
const lockNamespace = "meetsync:lock:"

// RedisService holds the shared Redis client. It backs the redis session store
// and the cross-instance keep-alive locks.
type RedisService struct {
	client *redis.Client
}

// NewRedisService connects to redisURL, retrying the initial ping on network errors
func NewRedisService(redisURL string) (*RedisService, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.PoolSize = 10
	opts.MinIdleConns = 1
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if _, err := RetryDo(ctx, DefaultRetryConfig, func() (string, error) {
		return client.Ping(ctx).Result()
	}); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	log.Printf("✅ Redis connected (%s, db %d)", opts.Addr, opts.DB)
	return &RedisService{client: client}, nil
}

// Client returns the underlying Redis client
func (r *RedisService) Client() *redis.Client {
	return r.client
}

func (r *RedisService) Close() error {
	return r.client.Close()
}

func (r *RedisService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// AcquireLock takes lockKey for owner unless another owner holds it
func (r *RedisService) AcquireLock(ctx context.Context, lockKey, owner string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, lockNamespace+lockKey, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", lockKey, err)
	}
	return ok, nil
}

// compareAndDelete removes the key only while it still holds the caller's value
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ReleaseLock drops lockKey if owner still holds it. An expired or stolen lock reports false.
func (r *RedisService) ReleaseLock(ctx context.Context, lockKey, owner string) (bool, error) {
	deleted, err := compareAndDelete.Run(ctx, r.client, []string{lockNamespace + lockKey}, owner).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to release lock %s: %w", lockKey, err)
	}
	return deleted == 1, nil
}
