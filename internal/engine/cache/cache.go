// Package cache provides the fingerprint-keyed response cache: TTL expiry on
// read, LRU eviction under capacity pressure, safe under arbitrary
// concurrent access.
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"market-insights/internal/common/metrics"
	"market-insights/internal/models"
)

// Fingerprint returns the stable cache key for normalized query text. Two
// queries that normalize identically must collide, so the hash covers the
// normalized form only.
func Fingerprint(normalizedText string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(normalizedText))
}

type entry struct {
	key        string
	answer     models.Answer
	createdAt  time.Time
	ttl        time.Duration
	lastAccess time.Time
}

// ResponseCache maps query fingerprints to previously produced answers.
// One mutex guards every read-modify-write sequence; the lock is never held
// across I/O.
type ResponseCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used

	now func() time.Time
}

// New creates a ResponseCache bounded to capacity entries.
func New(capacity int) *ResponseCache {
	if capacity < 1 {
		capacity = 1
	}
	return &ResponseCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns the cached answer for a fingerprint. An entry found past its
// TTL is removed and reported as a miss; reading it again is still a miss,
// not an error. A hit refreshes recency.
func (c *ResponseCache) Get(fingerprint string) (models.Answer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[fingerprint]
	if !ok {
		metrics.CacheMisses.Inc()
		return models.Answer{}, false
	}

	ent := elem.Value.(*entry)
	if c.now().Sub(ent.createdAt) > ent.ttl {
		// Expired entries must be purged on read, never returned stale.
		c.order.Remove(elem)
		delete(c.entries, fingerprint)
		metrics.CacheMisses.Inc()
		return models.Answer{}, false
	}

	ent.lastAccess = c.now()
	c.order.MoveToFront(elem)
	metrics.CacheHits.Inc()
	return ent.answer, true
}

// Put inserts or replaces the answer for a fingerprint. When the cache is at
// capacity the least-recently-used entry is evicted first, so the cache
// never exceeds capacity after any insert completes.
func (c *ResponseCache) Put(fingerprint string, answer models.Answer, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[fingerprint]; ok {
		ent := elem.Value.(*entry)
		ent.answer = answer
		ent.createdAt = c.now()
		ent.ttl = ttl
		ent.lastAccess = c.now()
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry).key)
			metrics.CacheEvictions.Inc()
		}
	}

	c.entries[fingerprint] = c.order.PushFront(&entry{
		key:        fingerprint,
		answer:     answer,
		createdAt:  c.now(),
		ttl:        ttl,
		lastAccess: c.now(),
	})
}

// Len returns the current entry count.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear drops every entry. Used on shutdown.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}
