package classifier

import (
	"sync"
	"time"

	"github.com/reviewsift/review-sift/internal/pkg/hash"
	"github.com/reviewsift/review-sift/internal/review"
)

// CacheMetrics records cache activity. The interface keeps the cache
// decoupled from the metrics package.
type CacheMetrics interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
	UpdateCacheSize(cacheType string, size int)
}

const cacheKind = "prediction"

type cacheEntry struct {
	result   review.PredictionResult
	storedAt time.Time
}

// PredictionCache is a size- and TTL-bounded LRU cache of classification
// results keyed by model name and cleaned text. Repeated inputs skip the
// forward pass entirely; deterministic inference makes cached results
// exact. Entries older than the TTL expire lazily on lookup.
type PredictionCache struct {
	mu      sync.RWMutex
	cache   map[string]cacheEntry
	maxSize int
	ttl     time.Duration
	enabled bool
	order   []string // LRU order, oldest first
	metrics CacheMetrics

	now func() time.Time
}

// NewPredictionCache creates a cache holding at most maxSize entries.
// A zero ttl means entries never expire.
func NewPredictionCache(maxSize int, ttl time.Duration) *PredictionCache {
	if maxSize <= 0 {
		maxSize = 10000
	}

	return &PredictionCache{
		cache:   make(map[string]cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		enabled: true,
		order:   make([]string, 0, maxSize),
		now:     time.Now,
	}
}

// SetMetrics sets the metrics recorder. Optional.
func (c *PredictionCache) SetMetrics(metrics CacheMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = metrics
}

// SetTTL changes the expiry for subsequent lookups. Existing entries are
// judged against the new value.
func (c *PredictionCache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// SetEnabled turns the cache on or off at runtime. Disabling drops all
// entries so a later enable starts fresh.
func (c *PredictionCache) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	if !enabled {
		c.dropAllLocked()
	}
}

// Get retrieves a cached result. Expired entries count as misses and are
// removed. Returned values are copies flagged Cached, so callers can
// mutate them freely.
func (c *PredictionCache) Get(model, text string) (*review.PredictionResult, bool) {
	key := hash.PredictionKey(model, text)

	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return nil, false
	}

	entry, ok := c.cache[key]
	if ok && c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		c.removeLocked(key)
		ok = false
	}
	if !ok {
		metrics := c.metrics
		c.mu.Unlock()
		if metrics != nil {
			metrics.RecordCacheMiss(cacheKind)
		}
		return nil, false
	}

	c.moveToEnd(key)
	metrics := c.metrics
	c.mu.Unlock()

	if metrics != nil {
		metrics.RecordCacheHit(cacheKind)
	}

	res := entry.result
	res.Cached = true
	return &res, true
}

// Set stores a result. The entry is copied in, uncached-flagged, so hits
// can be told apart from the original call.
func (c *PredictionCache) Set(model, text string, res *review.PredictionResult) {
	if res == nil {
		return
	}

	key := hash.PredictionKey(model, text)

	stored := *res
	stored.Cached = false

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return
	}

	entry := cacheEntry{result: stored, storedAt: c.now()}

	if _, exists := c.cache[key]; exists {
		c.cache[key] = entry
		c.moveToEnd(key)
		return
	}

	for len(c.cache) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.cache, oldest)
	}

	c.cache[key] = entry
	c.order = append(c.order, key)

	if c.metrics != nil {
		c.metrics.UpdateCacheSize(cacheKind, len(c.cache))
	}
}

// removeLocked deletes one entry. Callers hold the lock.
func (c *PredictionCache) removeLocked(key string) {
	delete(c.cache, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// moveToEnd moves a key to the most-recently-used position. Callers hold
// the lock.
func (c *PredictionCache) moveToEnd(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, key)
			return
		}
	}
}

// Size returns the current entry count.
func (c *PredictionCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Clear removes all entries.
func (c *PredictionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropAllLocked()
}

// dropAllLocked resets the entry map. Callers hold the lock.
func (c *PredictionCache) dropAllLocked() {
	c.cache = make(map[string]cacheEntry)
	c.order = make([]string, 0, c.maxSize)

	if c.metrics != nil {
		c.metrics.UpdateCacheSize(cacheKind, 0)
	}
}

// CacheStats holds cache statistics.
type CacheStats struct {
	Size       int  `json:"size"`
	MaxSize    int  `json:"max_size"`
	TTLSeconds int  `json:"ttl_seconds"`
	Enabled    bool `json:"enabled"`
}

// Stats returns current cache statistics.
func (c *PredictionCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CacheStats{
		Size:       len(c.cache),
		MaxSize:    c.maxSize,
		TTLSeconds: int(c.ttl / time.Second),
		Enabled:    c.enabled,
	}
}
