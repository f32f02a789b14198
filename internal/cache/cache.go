package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/malabook/mala/server/internal/config"
	"github.com/malabook/mala/server/internal/log"
)

// Per-entity TTLs. Volatile data (appointments, salons) expires fast,
// slow-moving catalogs keep entries longer.
const (
	ServicesTTL     = 300 * time.Second
	AppointmentsTTL = 120 * time.Second
	MessagesTTL     = 240 * time.Second
	SalonsTTL       = 120 * time.Second
	ProfilesTTL     = 120 * time.Second
	UsersTTL        = 300 * time.Second
	StaffTTL        = 120 * time.Second
	PaymentsTTL     = 120 * time.Second
	AnalyticsTTL    = 300 * time.Second
)

// Cache is a best-effort read-through cache. Lookups report misses on
// backend errors and writes log failures instead of returning them, so
// an unavailable backend degrades performance, not correctness.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	// DeletePrefix drops every key starting with prefix, e.g.
	// "services:" after a service is updated.
	DeletePrefix(ctx context.Context, prefix string)
	Ping(ctx context.Context) error
	Close() error
}

// Key joins parts with ":": Key("appointments", "user", "7") is
// "appointments:user:7".
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// ListKey names a paginated list entry, shared by the handlers and the
// warm-up job so both address the same slots.
func ListKey(entity string, skip, limit int) string {
	return fmt.Sprintf("%s:list:%d:%d", entity, skip, limit)
}

// GetJSON retrieves key and unmarshals it into dst. A corrupt entry is
// evicted and reported as a miss.
func GetJSON(ctx context.Context, c Cache, key string, dst interface{}) bool {
	data, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		log.Warning(ctx, "Evicting undecodable cache entry", "key", key, "err", err)
		c.Delete(ctx, key)
		return false
	}
	return true
}

// SetJSON marshals v and stores it under key. Marshal failures are
// logged and skipped.
func SetJSON(ctx context.Context, c Cache, key string, v interface{}, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Warning(ctx, "Failed to marshal cache entry", "key", key, "err", err)
		return
	}
	c.Set(ctx, key, data, ttl)
}

// New connects to Redis when an address is configured and falls back to
// the in-memory cache when Redis is missing or unreachable.
func New(ctx context.Context, redisConfig config.RedisConfig, cacheConfig config.CacheConfig) Cache {
	if redisConfig.Addr == "" {
		log.Info(ctx, "Redis not configured, using in-memory cache")
		return NewMemory(cacheConfig.DefaultTTL)
	}
	c, err := NewRedis(ctx, redisConfig, cacheConfig)
	if err != nil {
		log.Warning(ctx, "Redis unavailable, falling back to in-memory cache",
			"addr", redisConfig.Addr, "err", err)
		return NewMemory(cacheConfig.DefaultTTL)
	}
	log.Info(ctx, "Connected to Redis", "addr", redisConfig.Addr, "namespace", cacheConfig.Namespace)
	return c
}
