package logo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultCacheTTL is how long a raced result is reused.
const DefaultCacheTTL = 24 * time.Hour

const keyPrefix = "vault:logo:"

// RedisCache stores Results as JSON strings with a TTL.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache wraps client. A non-positive ttl selects DefaultCacheTTL.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Client timeouts stay well inside DefaultTimeout.
const (
	redisDialTimeout = 2 * time.Second
	redisIOTimeout   = 500 * time.Millisecond
)

// NewRedisClient connects to addr and pings it.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisIOTimeout,
		WriteTimeout: redisIOTimeout,
		MaxRetries:   -1,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, host string) (Result, bool, error) {
	b, err := c.client.Get(ctx, keyPrefix+host).Bytes()
	if errors.Is(err, redis.Nil) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("redis get: %w", err)
	}

	var res Result
	if err := json.Unmarshal(b, &res); err != nil {
		return Result{}, false, fmt.Errorf("decode cached logo: %w", err)
	}
	return res, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, host string, r Result) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode logo: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+host, b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
