package gate

import (
	"sync"
	"time"

	"github.com/finsight/marketgate/internal/metrics"
)

// cacheEntry is one deduplicated result with its expiry.
type cacheEntry struct {
	value  any
	expiry time.Time
}

// dedupCache short-circuits repeat requests for identical data within a
// short TTL. Entries are evicted lazily on read; there is no background
// sweep. A hit costs no admission budget and never touches the breaker.
type dedupCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	clock   clock
}

func newDedupCache(clk clock) *dedupCache {
	return &dedupCache{
		entries: make(map[string]cacheEntry),
		clock:   clk,
	}
}

// get returns the cached value for key if present and unexpired. A stale
// entry is removed on the spot.
func (c *dedupCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		metrics.CacheHits.WithLabelValues("miss").Inc()
		return nil, false
	}
	if !c.clock.Now().Before(e.expiry) {
		delete(c.entries, key)
		metrics.CacheHits.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues("hit").Inc()
	return e.value, true
}

// put stores value under key with a fresh expiry, overwriting any previous
// entry.
func (c *dedupCache) put(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiry: c.clock.Now().Add(ttl)}
}

// size returns the number of entries, counting expired-but-unread ones.
func (c *dedupCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
