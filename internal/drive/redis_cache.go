package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisURLCache is a URLCache backed by Redis/Valkey, for deployments running
// more than one backend replica. Redis failures degrade to cache misses; the
// streaming path must keep working when the cache tier is down.
type RedisURLCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisURLCache connects a cache to the provided Redis address. The auth
// token typically comes from the rotation service's valkey payload.
func NewRedisURLCache(addr, password string, ttl time.Duration, logger *slog.Logger) *RedisURLCache {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &RedisURLCache{client: client, ttl: ttl, logger: logger}
}

// Close releases the underlying connection pool.
func (c *RedisURLCache) Close() error {
	return c.client.Close()
}

func redisKey(userID, fileID string) string {
	return fmt.Sprintf("drive_stream_url:%s:%s", fileID, userID)
}

// Get fetches a cached streaming URL; TTL expiry is handled by Redis itself.
func (c *RedisURLCache) Get(ctx context.Context, userID, fileID string) (ResolvedURL, bool) {
	raw, err := c.client.Get(ctx, redisKey(userID, fileID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis url cache read failed", "fileId", fileID, "error", err)
		}
		return ResolvedURL{}, false
	}

	var resolved ResolvedURL
	if err := json.Unmarshal(raw, &resolved); err != nil {
		c.logger.Warn("redis url cache entry corrupt", "fileId", fileID, "error", err)
		return ResolvedURL{}, false
	}
	return resolved, true
}

// Set stores the entry with the cache TTL.
func (c *RedisURLCache) Set(ctx context.Context, userID, fileID string, resolved ResolvedURL) {
	raw, err := json.Marshal(resolved)
	if err != nil {
		c.logger.Warn("redis url cache encode failed", "fileId", fileID, "error", err)
		return
	}
	if err := c.client.Set(ctx, redisKey(userID, fileID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("redis url cache write failed", "fileId", fileID, "error", err)
	}
}

// Invalidate evicts the entry regardless of age.
func (c *RedisURLCache) Invalidate(ctx context.Context, userID, fileID string) {
	if err := c.client.Del(ctx, redisKey(userID, fileID)).Err(); err != nil {
		c.logger.Warn("redis url cache delete failed", "fileId", fileID, "error", err)
	}
}
