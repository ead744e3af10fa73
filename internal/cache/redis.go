package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/routemart/checkout-backend/pkg/busgw"
)

// NewRedisCache creates a snapshot cache over the given Redis client.
// TTL bounds how long a provider snapshot may serve the pipeline before a
// refetch; keep it short since the provider mutates carts between steps of
// different requests.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl == 0 {
		ttl = 2 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

// RedisCache is the Redis implementation of SnapshotCache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

type cachedSnapshot struct {
	Snapshot *busgw.CartSnapshot    `json:"snapshot"`
	Raw      map[string]interface{} `json:"raw"`
}

func (r *RedisCache) Get(ctx context.Context, cartID string) (*busgw.CartSnapshot, error) {
	data, err := r.client.Get(ctx, cacheKey(cartID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var entry cachedSnapshot
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal cached snapshot failed: %w", err)
	}
	if entry.Snapshot != nil {
		entry.Snapshot.Raw = entry.Raw
	}

	return entry.Snapshot, nil
}

func (r *RedisCache) Set(ctx context.Context, cartID string, snapshot *busgw.CartSnapshot) error {
	entry := cachedSnapshot{Snapshot: snapshot}
	if snapshot != nil {
		entry.Raw = snapshot.Raw
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal snapshot failed: %w", err)
	}

	if err := r.client.Set(ctx, cacheKey(cartID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, cartID string) error {
	if err := r.client.Del(ctx, cacheKey(cartID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(cartID string) string {
	return fmt.Sprintf("provider_cart:%s", cartID)
}
