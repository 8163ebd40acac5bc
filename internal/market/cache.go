package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("market: cache miss")

// Cache stores opaque values with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// TrendingCacheKey names the cache slot for a given fallback depth, so the
// batch and request paths never share stale static results.
func TrendingCacheKey(depth FallbackDepth) string {
	return "robodebate:trending:" + depth.String()
}

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// NewRedisCacheFromURL parses a redis:// URL, connects and pings.
func NewRedisCacheFromURL(ctx context.Context, url string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// MemoryCache is an in-process Cache used when no Redis URL is configured.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, ErrCacheMiss
	}
	return e.value, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, expires: c.now().Add(ttl)}
	return nil
}

// CachedSource serves proposals from a Cache, refreshing from the wrapped
// Source on a miss. Static fallback results are never cached. Cache errors
// are logged and bypassed.
type CachedSource struct {
	src   Source
	cache Cache
	key   string
	ttl   time.Duration
	log   *slog.Logger
}

func NewCachedSource(src Source, cache Cache, key string, ttl time.Duration, logger *slog.Logger) *CachedSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSource{src: src, cache: cache, key: key, ttl: ttl, log: logger}
}

func (s *CachedSource) Fetch(ctx context.Context) ([]Proposal, error) {
	if b, err := s.cache.Get(ctx, s.key); err == nil {
		var props []Proposal
		if err := json.Unmarshal(b, &props); err == nil && len(props) > 0 {
			return props, nil
		}
		s.log.WarnContext(ctx, "Discarding unreadable trending cache entry", "key", s.key)
	} else if !errors.Is(err, ErrCacheMiss) {
		s.log.WarnContext(ctx, "Trending cache read failed", "key", s.key, "error", err)
	}

	props, err := s.src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if isStatic(props) {
		return props, nil
	}

	b, err := json.Marshal(props)
	if err != nil {
		return props, nil
	}
	if err := s.cache.Set(ctx, s.key, b, s.ttl); err != nil {
		s.log.WarnContext(ctx, "Trending cache write failed", "key", s.key, "error", err)
	}
	return props, nil
}
