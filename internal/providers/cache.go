package providers

import (
	"container/list"
	"sync"
	"time"

	"github.com/ternarybob/reperio/internal/models"
)

// ProfileCache is a size-bounded TTL cache for enriched creator profiles.
// A long-lived worker processes thousands of jobs, so adapter-local caches
// must never grow unbounded per process. Eviction is LRU once the size bound
// is hit; reads past the TTL miss and evict.
type ProfileCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	entries map[models.CreatorKey]*list.Element
	order   *list.List // front = most recently used
	clock   func() time.Time
}

type cacheEntry struct {
	key      models.CreatorKey
	record   models.CreatorRecord
	storedAt time.Time
}

// NewProfileCache creates a cache bounded by maxSize entries and ttl age.
func NewProfileCache(maxSize int, ttl time.Duration) *ProfileCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ProfileCache{
		maxSize: maxSize,
		ttl:     ttl,
		entries: make(map[models.CreatorKey]*list.Element),
		order:   list.New(),
		clock:   time.Now,
	}
}

// Get returns the cached record for key, if present and fresh.
func (c *ProfileCache) Get(key models.CreatorKey) (models.CreatorRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return models.CreatorRecord{}, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.clock().Sub(entry.storedAt) > c.ttl {
		c.removeLocked(elem)
		return models.CreatorRecord{}, false
	}

	c.order.MoveToFront(elem)
	return entry.record, true
}

// Put stores a record, evicting the least recently used entry if full.
func (c *ProfileCache) Put(record models.CreatorRecord) {
	key := record.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.record = record
		entry.storedAt = c.clock()
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&cacheEntry{key: key, record: record, storedAt: c.clock()})
	c.entries[key] = elem

	for len(c.entries) > c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
	}
}

// Len returns the number of cached entries.
func (c *ProfileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ProfileCache) removeLocked(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	delete(c.entries, entry.key)
	c.order.Remove(elem)
}
