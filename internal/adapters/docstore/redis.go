package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"ramadan-bot/internal/domain"
	"ramadan-bot/internal/infra/metrics"
)

// Redis хранит документ под ключом prefix+path без срока жизни.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis создаёт хранилище поверх клиента.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(path string) string { return r.prefix + path }

// Load читает документ.
func (r *Redis) Load(ctx context.Context, path string) (data []byte, err error) {
	start := time.Now()
	defer func() {
		var observed error
		if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
			observed = err
		}
		metrics.ObserveNetworkRequest("docstore", "redis_get", "redis", start, observed)
	}()
	data, err = r.client.Get(ctx, r.key(path)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", path, err)
	}
	return data, nil
}

// Save перезаписывает документ.
func (r *Redis) Save(ctx context.Context, path string, data []byte) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveNetworkRequest("docstore", "redis_set", "redis", start, err) }()
	if err = r.client.Set(ctx, r.key(path), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", path, err)
	}
	return nil
}
