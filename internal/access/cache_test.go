package access

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	if _, hit, err := cache.Get(ctx, 7); err != nil || hit {
		t.Fatalf("expected clean miss, hit=%v err=%v", hit, err)
	}

	stored := NewResult()
	stored.Features[10] = struct{}{}
	stored.Pages[200] = struct{}{}
	stored.Permissions[1] = "dashboard.view"
	if err := cache.Put(ctx, 7, stored); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, hit, err := cache.Get(ctx, 7)
	if err != nil || !hit {
		t.Fatalf("expected hit, hit=%v err=%v", hit, err)
	}
	if !got.HasFeature(10) || !got.HasPage(200) || got.Permissions[1] != "dashboard.view" {
		t.Fatalf("cached result mismatch: %+v", got)
	}
}

func TestCacheBumpInvalidates(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	if err := cache.Put(ctx, 7, NewResult()); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := cache.Bump(ctx); err != nil {
		t.Fatalf("bump: %v", err)
	}
	if _, hit, err := cache.Get(ctx, 7); err != nil || hit {
		t.Fatalf("expected miss after bump, hit=%v err=%v", hit, err)
	}
}

func TestCachedResolverServesFromCache(t *testing.T) {
	store := scenarioStore()
	cache := newTestCache(t)
	cached := NewCachedResolver(newTestResolver(store), cache, discardLogger())
	ctx := context.Background()

	first, err := cached.ResolveUserAccess(ctx, 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := cached.ResolveUserAccess(ctx, 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if store.mappingCalls != 1 {
		t.Fatalf("second call must be served from cache, store hit %d times", store.mappingCalls)
	}
	if !second.HasFeature(10) || !second.HasPage(200) || len(first.Permissions) != len(second.Permissions) {
		t.Fatalf("cached result mismatch: %+v vs %+v", first, second)
	}

	// Invalidation forces a fresh resolution.
	if err := cache.Bump(ctx); err != nil {
		t.Fatalf("bump: %v", err)
	}
	if _, err := cached.ResolveUserAccess(ctx, 7); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if store.mappingCalls != 2 {
		t.Fatalf("expected fresh resolution after bump, store hit %d times", store.mappingCalls)
	}
}
