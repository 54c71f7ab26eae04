package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ramadan-bot/internal/infra/metrics"
)

// RedisClaims реализует domain.DeliveryClaims через SETNX.
type RedisClaims struct {
	client redis.Cmdable
	prefix string
}

// NewRedisClaims создаёт хранилище отметок с префиксом ключей.
func NewRedisClaims(client redis.Cmdable, prefix string) *RedisClaims {
	return &RedisClaims{client: client, prefix: prefix}
}

// Claim ставит ключ, если его ещё нет. false значит, что отправку уже занял другой процесс.
func (c *RedisClaims) Claim(ctx context.Context, key string, ttl time.Duration) (ok bool, err error) {
	start := time.Now()
	defer func() { metrics.ObserveNetworkRequest("redis", "claim", "redis", start, err) }()

	ok, err = c.client.SetNX(ctx, c.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Release снимает отметку, чтобы отправку можно было повторить.
func (c *RedisClaims) Release(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveNetworkRequest("redis", "release", "redis", start, err) }()

	if err = c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
