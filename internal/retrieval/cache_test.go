package retrieval

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestRedisCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	cache := NewRedisCache(client, time.Minute)
	key := embeddingCacheKey("test-model", uuid.NewString())
	defer client.Del(ctx, key)

	if _, ok, err := cache.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := cache.Set(ctx, key, []float32{0.25, 0.5}); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	vector, ok, err := cache.Get(ctx, key)
	if err != nil || !ok || len(vector) != 2 || vector[1] != 0.5 {
		t.Fatalf("unexpected cached value %v ok=%v err=%v", vector, ok, err)
	}

	ttl, err := client.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		t.Fatalf("expected ttl on cached key, got %v (%v)", ttl, err)
	}
}
