package score

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces score entries in a shared redis instance.
const redisKeyPrefix = "tollgate:score:"

// redisCache is the shared-cache backend. TTL expiry is handled by redis
// itself.
type redisCache struct {
	client *redis.Client
}

// newRedisCache connects to redis and verifies the connection before
// returning. A backend that cannot be reached at startup is a
// configuration error, not something to discover per request.
func newRedisCache(ctx context.Context, redisURL string) (*redisCache, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis score cache requires a redis URL")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.DialTimeout = 3 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &redisCache{client: client}, nil
}

func (c *redisCache) Get(ctx context.Context, key string) (int, bool, error) {
	value, err := c.client.Get(ctx, redisKeyPrefix+key).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis get: %w", err)
	}

	score, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("redis score entry %q is not a number: %w", value, err)
	}
	return score, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, score int, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, strconv.Itoa(score), ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *redisCache) Close() error {
	return c.client.Close()
}
