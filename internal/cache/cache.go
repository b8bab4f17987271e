// Package cache fronts the store with a bounded LRU keyed by
// "projectId:key". Entries expire after a TTL; any access refreshes an
// entry's freshness. The cache is advisory: a miss never changes
// observable behavior, only latency.
package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/alucardeht/membank/internal/model"
)

const (
	DefaultMaxEntries = 10000
	DefaultTTL        = time.Hour
)

type entry struct {
	mem     *model.Memory
	expires time.Time
}

type Cache struct {
	mu     sync.Mutex
	lru    *simplelru.LRU[string, *entry]
	ttl    time.Duration
	max    int
	hits   int64
	misses int64
	now    func() time.Time
}

// New creates a cache with the given capacity and TTL. Non-positive
// arguments fall back to the defaults.
func New(maxEntries int, ttl time.Duration) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	lru, err := simplelru.NewLRU[string, *entry](maxEntries, nil)
	if err != nil {
		// Only reachable with a non-positive size, which is guarded above.
		panic(err)
	}

	return &Cache{
		lru: lru,
		ttl: ttl,
		max: maxEntries,
		now: time.Now,
	}
}

// Key builds the namespaced cache key for a record.
func Key(projectID, key string) string {
	return projectID + ":" + key
}

// Get returns the cached record and refreshes its freshness. Expired
// entries are removed and reported as misses.
func (c *Cache) Get(key string) (*model.Memory, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().After(e.expires) {
		c.lru.Remove(key)
		c.misses++
		return nil, false
	}

	e.expires = c.now().Add(c.ttl)
	c.hits++
	return e.mem, true
}

// Has reports whether a live entry exists, refreshing its freshness.
func (c *Cache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Set stores a record, evicting the least-recently-used entry when at
// capacity.
func (c *Cache) Set(key string, mem *model.Memory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, &entry{mem: mem, expires: c.now().Add(c.ttl)})
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(key)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
}

// Stats describes the cache for memory_stats.
type Stats struct {
	Size       int   `json:"size"`
	MaxEntries int   `json:"maxEntries"`
	TTLMillis  int64 `json:"ttlMs"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Size:       c.lru.Len(),
		MaxEntries: c.max,
		TTLMillis:  c.ttl.Milliseconds(),
		Hits:       c.hits,
		Misses:     c.misses,
	}
}
