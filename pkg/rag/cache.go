package rag

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// SearchCache caches raw (pre-boost) search results in Redis. Boosting and
// restrict filtering are deterministic transforms, so caching upstream of
// them keeps cache entries valid across priority reconfiguration.
type SearchCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewSearchCache connects to Redis at addr. The connection is verified lazily;
// call HealthCheck at startup for an eager probe.
func NewSearchCache(addr string, ttl time.Duration) *SearchCache {
	return &SearchCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
		logger: slog.Default().With("component", "search-cache"),
	}
}

// HealthCheck pings the Redis server.
func (sc *SearchCache) HealthCheck(ctx context.Context) error {
	if err := sc.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Key derives a stable cache key from the search parameters.
func (sc *SearchCache) Key(query string, topK int, restrictDocID string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", query, topK, restrictDocID)))
	return fmt.Sprintf("regamend:search:%x", sum[:16])
}

// Get returns cached results for the key, or false on miss or error. Cache
// failures never fail a search.
func (sc *SearchCache) Get(ctx context.Context, key string) ([]RetrievedContext, bool) {
	data, err := sc.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		sc.logger.Warn("cache read failed", "error", err)
		return nil, false
	}

	var results []RetrievedContext
	if err := json.Unmarshal(data, &results); err != nil {
		sc.logger.Warn("cache entry corrupt, discarding", "key", key, "error", err)
		sc.client.Del(ctx, key)
		return nil, false
	}
	return results, true
}

// Put stores results under the key with the configured TTL.
func (sc *SearchCache) Put(ctx context.Context, key string, results []RetrievedContext) {
	data, err := json.Marshal(results)
	if err != nil {
		sc.logger.Warn("cache marshal failed", "error", err)
		return
	}
	if err := sc.client.Set(ctx, key, data, sc.ttl).Err(); err != nil {
		sc.logger.Warn("cache write failed", "error", err)
	}
}

// Close releases the Redis connection.
func (sc *SearchCache) Close() error {
	return sc.client.Close()
}
