package history

import (
	"strings"
	"sync"
	"time"
)

// statsCache stores recently computed statistics to avoid re-aggregating the
// archive for identical range queries while the history is unchanged.
type statsCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]statsCacheEntry
}

type statsCacheEntry struct {
	stats     Statistics
	expiresAt time.Time
}

func newStatsCache(ttl time.Duration, maxEntries int, now func() time.Time) *statsCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 32
	}
	if now == nil {
		now = time.Now
	}
	return &statsCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]statsCacheEntry),
	}
}

func (c *statsCache) Get(key string) (Statistics, bool) {
	if c == nil {
		return Statistics{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Statistics{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return Statistics{}, false
	}
	return cloneStatistics(entry.stats), true
}

func (c *statsCache) Store(key string, stats Statistics) {
	if c == nil {
		return
	}
	cloned := cloneStatistics(stats)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = statsCacheEntry{stats: cloned, expiresAt: expiry}
}

func (c *statsCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]statsCacheEntry)
	c.mu.Unlock()
}

func (c *statsCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *statsCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneStatistics(stats Statistics) Statistics {
	out := stats
	if stats.PerAlarm != nil {
		out.PerAlarm = make(map[string]AlarmTriggerInfo, len(stats.PerAlarm))
		for id, info := range stats.PerAlarm {
			out.PerAlarm[id] = info
		}
	}
	if stats.MostTriggered != nil {
		top := *stats.MostTriggered
		out.MostTriggered = &top
	}
	return out
}

func statsCacheKey(from, to *time.Time) string {
	builder := strings.Builder{}
	if from != nil {
		builder.WriteString(from.UTC().Format(time.RFC3339Nano))
	}
	builder.WriteString("|")
	if to != nil {
		builder.WriteString(to.UTC().Format(time.RFC3339Nano))
	}
	return builder.String()
}
