package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"ezshop/terminal/internal/domain"
)

// RedisProductCache shares product details between terminals of one login.
// Keys are scoped by the session key and expire with the session.
type RedisProductCache struct {
	client *redis.Client
	scope  string
	ttl    time.Duration
}

func NewRedisProductCache(addr string, password string, db int, scope string, ttl time.Duration) *RedisProductCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisProductCache{client: client, scope: scope, ttl: ttl}
}

// SessionTTL is how long an entry may live for a session expiring at
// expiresAt. fallback applies when the token carries no expiry or has
// already expired.
func SessionTTL(expiresAt time.Time, now time.Time, fallback time.Duration) time.Duration {
	if expiresAt.IsZero() {
		return fallback
	}
	if remaining := expiresAt.Sub(now); remaining > 0 {
		return remaining
	}
	return fallback
}

func (c *RedisProductCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisProductCache) Close() error {
	return c.client.Close()
}

func (c *RedisProductCache) key(barcode string) string {
	return "ezshop:product:" + c.scope + ":" + barcode
}

func (c *RedisProductCache) Get(ctx context.Context, barcode string) (*domain.Product, bool, error) {
	val, err := c.client.Get(ctx, c.key(barcode)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var product domain.Product
	if err := json.Unmarshal([]byte(val), &product); err != nil {
		return nil, false, err
	}
	return &product, true, nil
}

func (c *RedisProductCache) Set(ctx context.Context, barcode string, product domain.Product) error {
	payload, err := json.Marshal(product)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(barcode), payload, c.ttl).Err()
}
