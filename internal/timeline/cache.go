package timeline

import (
	"sync"
	"time"

	"github.com/mkarlsen/dayblocks/internal/models"
)

// blockKey identifies one derivation result. Any change to the
// settings, the rule set, the events inside the window, or the
// boundary evidence around it produces a different key, so stale
// entries are simply never hit again.
type blockKey struct {
	start           int64
	end             int64
	settingsVersion int64
	rulesVersion    int64
	maxEventID      int64
	eventCount      int64
	primeFGID       int64
	primeBGID       int64
	nextFGID        int64
	nextBGID        int64
}

type cacheEntry struct {
	block        models.Block
	lastAccessed int64
}

// blockCache memoizes derived blocks. It is a pure optimization:
// derivation stays correct with the cache removed entirely. Reviews
// are attached after lookup and are never cached.
type blockCache struct {
	mu         sync.RWMutex
	entries    map[blockKey]*cacheEntry
	maxEntries int
}

func newBlockCache(maxEntries int) *blockCache {
	return &blockCache{
		entries:    make(map[blockKey]*cacheEntry),
		maxEntries: maxEntries,
	}
}

func (c *blockCache) get(key blockKey) (models.Block, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return models.Block{}, false
	}

	c.mu.Lock()
	entry.lastAccessed = time.Now().UnixNano()
	c.mu.Unlock()
	return entry.block, true
}

func (c *blockCache) put(key blockKey, block models.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{
		block:        block,
		lastAccessed: time.Now().UnixNano(),
	}

	// Evict the least recently used entries once over capacity.
	for len(c.entries) > c.maxEntries {
		var oldestKey blockKey
		var oldest int64
		first := true
		for k, e := range c.entries {
			if first || e.lastAccessed < oldest {
				oldestKey = k
				oldest = e.lastAccessed
				first = false
			}
		}
		delete(c.entries, oldestKey)
	}
}
