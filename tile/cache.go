package tile

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/Everpoint/sGis-sub002/metrics"
)

// Cache is a FIFO of tiles bounded by capacity. Lookups never change the
// eviction order.
type Cache struct {
	capacity int
	entries  *orderedmap.OrderedMap[Key, *CachedTile]
}

// NewCache creates a cache holding at most capacity tiles (at least one).
func NewCache(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{capacity: capacity, entries: orderedmap.New[Key, *CachedTile]()}
}

func (c *Cache) Capacity() int { return c.capacity }
func (c *Cache) Len() int      { return c.entries.Len() }

// Get returns the tile cached under k.
func (c *Cache) Get(k Key) (*CachedTile, bool) {
	return c.entries.Get(k)
}

// Add inserts t, first dropping the oldest entries so the cache stays within
// capacity. It returns the evicted tiles, oldest first.
func (c *Cache) Add(t *CachedTile) []*CachedTile {
	if _, ok := c.entries.Get(t.key); ok {
		c.entries.Delete(t.key)
	}
	var evicted []*CachedTile
	for c.entries.Len() >= c.capacity {
		oldest := c.entries.Oldest()
		c.entries.Delete(oldest.Key)
		evicted = append(evicted, oldest.Value)
		metrics.TileCacheEvictions.Inc()
	}
	c.entries.Set(t.key, t)
	return evicted
}

// Keys lists the cached keys in insertion order.
func (c *Cache) Keys() []Key {
	keys := make([]Key, 0, c.entries.Len())
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.entries = orderedmap.New[Key, *CachedTile]()
}
