package reminders

import (
	"sort"
	"sync"
)

// Cache mirrors which notification ids were issued per task. It is a fast
// membership aid only; the platform store stays authoritative.
type Cache struct {
	mu      sync.RWMutex
	entries map[int64][]string
}

type CacheStats struct {
	Tasks         int
	Notifications int
}

func NewCache() *Cache {
	return &Cache{entries: make(map[int64][]string)}
}

func (c *Cache) Add(taskID int64, notificationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[taskID] = append(c.entries[taskID], notificationID)
}

// RemoveAll drops the entry for taskID and reports whether one existed.
func (c *Cache) RemoveAll(taskID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[taskID]
	delete(c.entries, taskID)
	return ok
}

// RemoveID drops a single notification id wherever it is cached.
func (c *Cache) RemoveID(notificationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for taskID, ids := range c.entries {
		for i, id := range ids {
			if id != notificationID {
				continue
			}
			ids = append(ids[:i:i], ids[i+1:]...)
			if len(ids) == 0 {
				delete(c.entries, taskID)
			} else {
				c.entries[taskID] = ids
			}
			return true
		}
	}
	return false
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int64][]string)
}

func (c *Cache) Get(taskID int64) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := c.entries[taskID]
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

func (c *Cache) Has(taskID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries[taskID]) > 0
}

// TaskIDs returns the cached task ids in ascending order.
func (c *Cache) TaskIDs() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]int64, 0, len(c.entries))
	for id := range c.entries {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stats := CacheStats{Tasks: len(c.entries)}
	for _, ids := range c.entries {
		stats.Notifications += len(ids)
	}
	return stats
}
