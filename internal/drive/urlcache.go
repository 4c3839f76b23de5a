package drive

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

// URLCache stores resolved streaming URLs per (user, file) pair. Entries are
// TTL-bounded and must support explicit invalidation after an upstream auth
// failure.
type URLCache interface {
	Get(ctx context.Context, userID, fileID string) (ResolvedURL, bool)
	Set(ctx context.Context, userID, fileID string, resolved ResolvedURL)
	Invalidate(ctx context.Context, userID, fileID string)
}

const urlCacheShards = 32

type urlEntry struct {
	resolved ResolvedURL
	expires  time.Time
}

type urlShard struct {
	mu    sync.RWMutex
	items map[string]urlEntry
}

// MemoryURLCache is a sharded in-process URLCache. Sharding keeps unrelated
// playback sessions from contending on a single lock.
type MemoryURLCache struct {
	ttl    time.Duration
	shards [urlCacheShards]*urlShard
	now    func() time.Time
}

// NewMemoryURLCache builds an in-memory cache with the provided entry TTL.
func NewMemoryURLCache(ttl time.Duration) *MemoryURLCache {
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	c := &MemoryURLCache{ttl: ttl, now: time.Now}
	for i := range c.shards {
		c.shards[i] = &urlShard{items: make(map[string]urlEntry)}
	}
	return c
}

func (c *MemoryURLCache) shard(key string) *urlShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%urlCacheShards]
}

func cacheKey(userID, fileID string) string {
	return userID + "\x00" + fileID
}

// Get returns the cached URL if present and younger than the TTL. Expired
// entries are evicted lazily here.
func (c *MemoryURLCache) Get(_ context.Context, userID, fileID string) (ResolvedURL, bool) {
	key := cacheKey(userID, fileID)
	s := c.shard(key)
	now := c.now()

	s.mu.RLock()
	entry, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		return ResolvedURL{}, false
	}
	if !now.Before(entry.expires) {
		s.mu.Lock()
		if current, still := s.items[key]; still && !now.Before(current.expires) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return ResolvedURL{}, false
	}
	return entry.resolved, true
}

// Set stores or overwrites the entry for the pair.
func (c *MemoryURLCache) Set(_ context.Context, userID, fileID string, resolved ResolvedURL) {
	key := cacheKey(userID, fileID)
	s := c.shard(key)

	s.mu.Lock()
	s.items[key] = urlEntry{resolved: resolved, expires: c.now().Add(c.ttl)}
	s.mu.Unlock()
}

// Invalidate evicts the entry regardless of age.
func (c *MemoryURLCache) Invalidate(_ context.Context, userID, fileID string) {
	key := cacheKey(userID, fileID)
	s := c.shard(key)

	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}
