package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/tenantguard/pkg/logger"
)

// DefaultRedisCachePrefix namespaces cached tenants in Redis.
const DefaultRedisCachePrefix = "tenantguard:tenant:"

// RedisCache shares tenant lookups between instances.
// Redis failures are logged and treated as cache misses.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

// NewRedisCache creates a Redis-backed cache. An empty prefix uses DefaultRedisCachePrefix.
func NewRedisCache(client redis.UniversalClient, prefix string, log *slog.Logger) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisCachePrefix
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisCache{client: client, prefix: prefix, logger: log}
}

// Get retrieves a tenant from Redis.
func (c *RedisCache) Get(ctx context.Context, key string) (*Tenant, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "tenant cache read failed", logger.Error(err))
		}
		return nil, false
	}

	var t Tenant
	if err := json.Unmarshal(data, &t); err != nil {
		c.logger.WarnContext(ctx, "tenant cache entry is corrupt", logger.Error(err))
		c.Delete(ctx, key)
		return nil, false
	}
	return &t, true
}

// Set stores a tenant in Redis with ttl.
func (c *RedisCache) Set(ctx context.Context, key string, tenant *Tenant, ttl time.Duration) {
	if tenant == nil {
		return
	}
	data, err := json.Marshal(tenant)
	if err != nil {
		c.logger.WarnContext(ctx, "tenant cache encode failed", logger.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "tenant cache write failed", logger.Error(err))
	}
}

// Delete removes a tenant from Redis.
func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.logger.WarnContext(ctx, "tenant cache delete failed", logger.Error(err))
	}
}

// Close is a no-op; the client is owned by the caller.
func (c *RedisCache) Close() error { return nil }
