package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const defaultMemoryEntries = 256

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryReportCache is an in-process ReportCache. Values are stored as JSON
// so callers never share mutable state through it.
type MemoryReportCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	maxEntries int
	entries    map[string]memoryEntry
}

// NewMemoryReportCache creates an empty cache holding at most maxEntries keys.
func NewMemoryReportCache(maxEntries int, now func() time.Time) *MemoryReportCache {
	if maxEntries <= 0 {
		maxEntries = defaultMemoryEntries
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryReportCache{
		now:        now,
		maxEntries: maxEntries,
		entries:    make(map[string]memoryEntry),
	}
}

func (c *MemoryReportCache) Get(_ context.Context, key string, out any) error {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return ErrCacheMiss
	}
	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return ErrCacheMiss
	}
	if err := json.Unmarshal(entry.data, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (c *MemoryReportCache) Set(_ context.Context, key string, val any, ttl time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = memoryEntry{data: data, expiresAt: c.now().Add(ttl)}
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryReportCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryReportCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *MemoryReportCache) evictOneLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey, oldest = key, entry.expiresAt
		}
	}
	delete(c.entries, oldestKey)
}
