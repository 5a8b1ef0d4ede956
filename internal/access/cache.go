package access

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "access:version"

// Cache is a Redis backed cache for resolved access results. It sits on
// top of the resolver, which itself never caches: mutation services bump
// the version to invalidate every cached result at once.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Bump invalidates all cached results by advancing the version.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

// Get loads a cached result for the user. The second return value is
// false on a miss.
func (c *Cache) Get(ctx context.Context, userID int64) (Result, bool, error) {
	if c == nil || c.client == nil {
		return Result{}, false, nil
	}
	key, err := c.key(ctx, userID)
	if err != nil {
		return Result{}, false, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, err
	}
	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return Result{}, false, err
	}
	return result, true, nil
}

// Put stores a resolved result for the user under the current version.
func (c *Cache) Put(ctx context.Context, userID int64, result Result) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.key(ctx, userID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, c.ttl).Err()
}

func (c *Cache) key(ctx context.Context, userID int64) (string, error) {
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("access:user:%d:%d", userID, ver), nil
}

// CachedResolver layers the cache over a Resolver. Cache failures fall
// back to a direct resolution so Redis outages degrade to slower calls,
// never to errors.
type CachedResolver struct {
	resolver *Resolver
	cache    *Cache
	logger   *slog.Logger
}

// NewCachedResolver wraps the resolver with the cache.
func NewCachedResolver(resolver *Resolver, cache *Cache, logger *slog.Logger) *CachedResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedResolver{resolver: resolver, cache: cache, logger: logger}
}

// ResolveUserAccess returns the cached result when fresh, resolving and
// populating the cache otherwise.
func (c *CachedResolver) ResolveUserAccess(ctx context.Context, userID int64) (Result, error) {
	result, hit, err := c.cache.Get(ctx, userID)
	if err != nil {
		c.logger.Warn("access cache read", slog.Any("error", err))
	} else if hit {
		return result, nil
	}

	result, err = c.resolver.ResolveUserAccess(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if err := c.cache.Put(ctx, userID, result); err != nil {
		c.logger.Warn("access cache write", slog.Any("error", err))
	}
	return result, nil
}

// ResolveNavigation always resolves against a fresh snapshot; the
// navigation tree is not cached.
func (c *CachedResolver) ResolveNavigation(ctx context.Context, userID int64) (NavigationTree, error) {
	return c.resolver.ResolveNavigation(ctx, userID)
}
