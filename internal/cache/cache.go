// Package cache implements the bounded, content-addressable response cache.
// Entries are keyed by a fingerprint of (endpoint, model, normalized prompt
// prefix); when full, the least-recently-accessed ~10% are evicted in one
// batch.
package cache

import (
	"sort"
	"sync"
	"time"

	"gatewayd/pkg/types"
)

const defaultCapacity = 256

type entry struct {
	response   []byte
	storedAt   time.Time
	lastAccess time.Time
}

// Cache is safe for concurrent use. Lookups never fail: any internal
// problem (unparseable payload, missing prompt) degrades to a miss.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	cap     int
	matcher Matcher

	hits      uint64
	misses    uint64
	evictions uint64
}

// New returns a Cache bounded to capacity entries. capacity <= 0 selects
// the default. matcher may be nil, which disables near-duplicate lookup.
func New(capacity int, matcher Matcher) *Cache {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if matcher == nil {
		matcher = NeverMatch{}
	}
	return &Cache{
		entries: make(map[string]*entry),
		cap:     capacity,
		matcher: matcher,
	}
}

// Get looks up a cached response for (endpoint, payload). Exact fingerprint
// match is tried first; the Matcher hook may then propose a near-duplicate.
// A hit refreshes the entry's access time.
func (c *Cache) Get(endpoint string, payload []byte) ([]byte, bool) {
	key, ok := fingerprint(endpoint, payload)
	if !ok {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	if e, found := c.entries[key]; found {
		e.lastAccess = time.Now()
		c.hits++
		resp := e.response
		c.mu.Unlock()
		return resp, true
	}
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	// Near-duplicate lookup runs outside the lock; the matcher may be slow.
	if near, found := c.matcher.Match(endpoint, payload, keys); found {
		c.mu.Lock()
		if e, still := c.entries[near]; still {
			e.lastAccess = time.Now()
			c.hits++
			resp := e.response
			c.mu.Unlock()
			return resp, true
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return nil, false
}

// Put stores a response under the payload's fingerprint. If the insert
// would exceed capacity, the least-recently-accessed ~10% of entries are
// evicted first, atomically with the insert.
func (c *Cache) Put(endpoint string, payload, response []byte) {
	key, ok := fingerprint(endpoint, payload)
	if !ok {
		return
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cap {
		c.evictLocked()
	}
	c.entries[key] = &entry{response: response, storedAt: now, lastAccess: now}
}

// evictLocked removes the oldest-accessed ~10% of entries (at least one).
// Caller holds c.mu.
func (c *Cache) evictLocked() {
	n := c.cap / 10
	if n < 1 {
		n = 1
	}
	type aged struct {
		key string
		at  time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{key: k, at: e.lastAccess})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })
	if n > len(all) {
		n = len(all)
	}
	for _, a := range all[:n] {
		delete(c.entries, a.key)
	}
	c.evictions += uint64(n)
}

// Len reports the current number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the diagnostic snapshot served by /cache/stats.
func (c *Cache) Stats() types.CacheStatsResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := types.CacheStatsResponse{
		Size:      len(c.entries),
		Capacity:  c.cap,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}
