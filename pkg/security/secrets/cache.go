package secrets

import (
	"sync"
	"time"
)

// CacheConfig configures the manager's secret cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	MaxSize int
}

// DefaultCacheConfig caches up to 100 secrets for five minutes.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{Enabled: true, TTL: 5 * time.Minute, MaxSize: 100}
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// Cache is a TTL cache. When full, the entry closest to expiry is evicted.
type Cache struct {
	cfg     CacheConfig
	now     func() time.Time
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache creates a cache.
func NewCache(cfg CacheConfig) *Cache {
	return &Cache{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns a live entry.
func (c *Cache) Get(key string) (string, bool) {
	if !c.cfg.Enabled {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

// Set stores value under key.
func (c *Cache) Set(key, value string) {
	if !c.cfg.Enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.cfg.MaxSize > 0 && len(c.entries) >= c.cfg.MaxSize {
		var oldest string
		var oldestAt time.Time
		for k, e := range c.entries {
			if oldest == "" || e.expiresAt.Before(oldestAt) {
				oldest, oldestAt = k, e.expiresAt
			}
		}
		delete(c.entries, oldest)
	}

	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(c.cfg.TTL)}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
