package secrets

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCache_GetSet(t *testing.T) {
	c := NewCache(CacheConfig{Enabled: true, TTL: time.Minute, MaxSize: 10})

	c.Set("key", "value")
	if v, ok := c.Get("key"); !ok || v != "value" {
		t.Errorf("Get() = %q, %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should miss")
	}
}

func TestCache_TTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(CacheConfig{Enabled: true, TTL: time.Minute, MaxSize: 10})
	c.now = func() time.Time { return now }

	c.Set("key", "value")
	now = now.Add(59 * time.Second)
	if _, ok := c.Get("key"); !ok {
		t.Error("entry expired early")
	}
	now = now.Add(2 * time.Second)
	if _, ok := c.Get("key"); ok {
		t.Error("entry should have expired")
	}
}

func TestCache_MaxSize(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache(CacheConfig{Enabled: true, TTL: time.Minute, MaxSize: 2})
	c.now = func() time.Time { return now }

	c.Set("a", "1")
	now = now.Add(time.Second)
	c.Set("b", "2")
	now = now.Add(time.Second)
	c.Set("c", "3")

	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}

	// Overwriting an existing key never evicts.
	c.Set("c", "4")
	if _, ok := c.Get("b"); !ok {
		t.Error("overwrite evicted an entry")
	}
}

func TestCache_DisabledAndClear(t *testing.T) {
	off := NewCache(CacheConfig{Enabled: false})
	off.Set("key", "value")
	if _, ok := off.Get("key"); ok {
		t.Error("disabled cache returned a value")
	}

	c := NewCache(DefaultCacheConfig())
	c.Set("key", "value")
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
}

func TestCache_Concurrent(t *testing.T) {
	c := NewCache(DefaultCacheConfig())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%20)
				c.Set(key, fmt.Sprint(i))
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
}
