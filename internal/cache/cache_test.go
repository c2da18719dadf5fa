// file: internal/cache/cache_test.go
// version: 2.1.0
// guid: 2b4e0034-92d8-48ef-8450-a7f438a84ee2

package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetSet(t *testing.T) {
	c := New[string](time.Minute)
	c.Set("k", "v")
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[int](time.Second)
	c.now = func() time.Time { return now }
	c.Set("k", 42)

	c.Set("other", 7)

	now = now.Add(2 * time.Second)
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len(), "expired entry is dropped on read")
	assert.Equal(t, 1, c.DeleteExpired())
	assert.Equal(t, 0, c.Len())
}

func TestSetSweepsExpiredEntries(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[int](time.Millisecond)
	c.now = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		c.Set(fmt.Sprintf("https://example.com/%d.mp3", i), i)
	}
	assert.Equal(t, 50, c.Len())

	// None of the 50 keys is read again; the next write clears them out.
	now = now.Add(10 * time.Millisecond)
	c.Set("https://example.com/new.mp3", 99)
	assert.Equal(t, 1, c.Len())
	v, ok := c.Get("https://example.com/new.mp3")
	assert.True(t, ok)
	assert.Equal(t, 99, v)
}

func TestSetSweepsAtMostOncePerTTL(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	c := New[int](time.Minute)
	c.now = func() time.Time { return now }

	c.Set("x", 0) // sweeps the empty map
	now = start.Add(10 * time.Second)
	c.Set("a", 1)
	now = start.Add(60 * time.Second)
	c.Set("b", 2) // sweeps, nothing has expired yet

	// "x" and "a" have expired but the last sweep was 20s ago.
	now = start.Add(80 * time.Second)
	c.Set("c", 3)
	assert.Equal(t, 4, c.Len())

	now = start.Add(120 * time.Second)
	c.Set("d", 4)
	assert.Equal(t, 3, c.Len())
	_, ok := c.Get("b")
	assert.True(t, ok)
}

func TestDisabledCacheStoresNothing(t *testing.T) {
	c := New[string](0)
	assert.False(t, c.Enabled())
	c.Set("k", "v")
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache[string]
	assert.False(t, c.Enabled())
	c.Set("k", "v")
	c.Invalidate("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.DeleteExpired())
}

func TestInvalidate(t *testing.T) {
	c := New[string](time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	v, ok := c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
}
