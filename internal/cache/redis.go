package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/malabook/mala/server/internal/config"
	"github.com/malabook/mala/server/internal/gerrors"
	"github.com/malabook/mala/server/internal/log"
)

type redisCache struct {
	client     *redis.Client
	namespace  string
	defaultTTL time.Duration
}

func NewRedis(ctx context.Context, redisConfig config.RedisConfig, cacheConfig config.CacheConfig) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisConfig.Addr,
		Password: redisConfig.Password,
		DB:       redisConfig.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, gerrors.Wrap(err)
	}
	return &redisCache{
		client:     client,
		namespace:  cacheConfig.Namespace,
		defaultTTL: cacheConfig.DefaultTTL,
	}, nil
}

func (c *redisCache) key(key string) string {
	return c.namespace + ":" + key
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		log.Warning(ctx, "Redis get failed", "key", key, "err", err)
		return nil, false
	}
	return data, true
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		log.Warning(ctx, "Redis set failed", "key", key, "err", err)
	}
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	namespaced := make([]string, len(keys))
	for i, key := range keys {
		namespaced[i] = c.key(key)
	}
	if err := c.client.Del(ctx, namespaced...).Err(); err != nil {
		log.Warning(ctx, "Redis delete failed", "keys", keys, "err", err)
	}
}

func (c *redisCache) DeletePrefix(ctx context.Context, prefix string) {
	iter := c.client.Scan(ctx, 0, c.key(prefix)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Warning(ctx, "Redis scan failed", "prefix", prefix, "err", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Warning(ctx, "Redis delete failed", "prefix", prefix, "err", err)
	}
}

func (c *redisCache) Ping(ctx context.Context) error {
	return gerrors.Wrap(c.client.Ping(ctx).Err())
}

func (c *redisCache) Close() error {
	return c.client.Close()
}
