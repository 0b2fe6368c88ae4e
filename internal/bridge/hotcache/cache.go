// Package hotcache implements the Bridge's bounded in-memory anchor
// cache: a map from rule_id to its anchor block plus access metadata,
// with batch LRU eviction when full.
//
// hashicorp/golang-lru/v2 (used elsewhere in this codebase's lineage for its
// decision cache) is deliberately not used here: its eviction hook only
// ever drops the single least-recently-used entry, and has no way to
// express "evict the ⌈capacity/10⌉ entries with the smallest
// last_evaluated_at, tie-broken by loaded_at then rule_id, as one batch".
// That requires sorting over the full entry set's timestamps, which this
// package does directly.
package hotcache

import (
	"sort"
	"sync"

	"github.com/fencio-dev/prism/internal/bridge/common/clock"
	"github.com/fencio-dev/prism/internal/bridge/domain"
)

// DefaultCapacity is the hot cache's default entry limit.
const DefaultCapacity = 10000

// entry is one cached anchor block plus its access-tracking timestamps.
type entry struct {
	anchors         domain.RuleVector
	loadedAt        int64
	lastEvaluatedAt int64
}

// Stats reports cumulative cache metrics.
type Stats struct {
	Entries        int
	Capacity       int
	TotalEvictions uint64
	TotalEvicted   uint64
}

// Cache is the bounded hot anchor cache.
type Cache struct {
	mu       sync.Mutex
	clock    clock.Clock
	capacity int
	entries  map[string]*entry

	totalEvictions uint64
	totalEvicted   uint64
}

// New creates a Cache with the given capacity and clock. A capacity <= 0
// falls back to DefaultCapacity.
func New(capacity int, clk clock.Clock) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		clock:    clk,
		capacity: capacity,
		entries:  make(map[string]*entry, capacity),
	}
}

// Insert updates the anchors in place if rule_id already exists (no
// eviction, no size change); otherwise inserts a new entry. If inserting
// would exceed capacity, the oldest 10% of entries are evicted first.
func (c *Cache) Insert(ruleId string, anchors domain.RuleVector) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now().UnixMilli()

	if e, exists := c.entries[ruleId]; exists {
		e.anchors = anchors
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictBatchLocked()
	}

	c.entries[ruleId] = &entry{
		anchors:         anchors,
		loadedAt:        now,
		lastEvaluatedAt: now,
	}
}

// evictBatchLocked drops the ⌈capacity/10⌉ entries with the smallest
// last_evaluated_at, tie-broken by loaded_at, then by rule_id
// lexicographically. Must be called with mu held.
func (c *Cache) evictBatchLocked() {
	n := (c.capacity + 9) / 10
	if n < 1 {
		n = 1
	}
	if n > len(c.entries) {
		n = len(c.entries)
	}
	if n == 0 {
		return
	}

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := c.entries[ids[i]], c.entries[ids[j]]
		if a.lastEvaluatedAt != b.lastEvaluatedAt {
			return a.lastEvaluatedAt < b.lastEvaluatedAt
		}
		if a.loadedAt != b.loadedAt {
			return a.loadedAt < b.loadedAt
		}
		return ids[i] < ids[j]
	})

	for _, id := range ids[:n] {
		delete(c.entries, id)
	}
	c.totalEvictions++
	c.totalEvicted += uint64(n)
}

// Get returns a clone of the anchors if present. Does not update
// timestamps.
func (c *Cache) Get(ruleId string) (domain.RuleVector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ruleId]
	if !ok {
		return domain.RuleVector{}, false
	}
	return e.anchors.Clone(), true
}

// GetAndMark behaves like Get but also updates last_evaluated_at to now.
func (c *Cache) GetAndMark(ruleId string) (domain.RuleVector, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ruleId]
	if !ok {
		return domain.RuleVector{}, false
	}
	e.lastEvaluatedAt = c.clock.Now().UnixMilli()
	return e.anchors.Clone(), true
}

// Contains reports whether rule_id is present without affecting order.
func (c *Cache) Contains(ruleId string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[ruleId]
	return ok
}

// Remove drops rule_id if present.
func (c *Cache) Remove(ruleId string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, ruleId)
}

// Clear empties the cache without counting the drop as an eviction.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry, c.capacity)
}

// Snapshot returns a copy of every rule_id -> anchors pair currently held,
// used to persist the full hot cache to warm storage on install
// on install.
func (c *Cache) Snapshot() map[string]domain.RuleVector {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]domain.RuleVector, len(c.entries))
	for id, e := range c.entries {
		out[id] = e.anchors.Clone()
	}
	return out
}

// Stats returns a snapshot of cumulative cache metrics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:        len(c.entries),
		Capacity:       c.capacity,
		TotalEvictions: c.totalEvictions,
		TotalEvicted:   c.totalEvicted,
	}
}
