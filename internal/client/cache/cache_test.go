package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setClock pins the cache clock to a controllable time.
func setClock(c *Cache, at *time.Time) {
	c.now = func() time.Time { return *at }
}

func TestGet_ReturnsValueBeforeTTL(t *testing.T) {
	c := New(time.Minute)
	now := time.Now()
	setClock(c, &now)

	c.SetWithTTL("assignment:1", "payload", 10*time.Second)

	v, ok := c.Get("assignment:1")
	require.True(t, ok)
	assert.Equal(t, "payload", v)

	now = now.Add(9 * time.Second)
	_, ok = c.Get("assignment:1")
	assert.True(t, ok)
}

func TestGet_EvictsAfterTTL(t *testing.T) {
	c := New(time.Minute)
	now := time.Now()
	setClock(c, &now)

	c.SetWithTTL("assignment:1", "payload", 10*time.Second)
	now = now.Add(10 * time.Second)

	_, ok := c.Get("assignment:1")
	require.False(t, ok)
	// lazy eviction removed the entry
	assert.Equal(t, 0, c.Len())
}

func TestGet_AbsentKey(t *testing.T) {
	c := New(time.Minute)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestSet_UsesDefaultTTLAndOverwrites(t *testing.T) {
	c := New(30 * time.Second)
	now := time.Now()
	setClock(c, &now)

	c.Set("k", "old")
	c.Set("k", "new")

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", v)

	now = now.Add(29 * time.Second)
	_, ok = c.Get("k")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestClearByPrefix_RemovesOnlyMatchingKeys(t *testing.T) {
	c := New(time.Minute)

	c.Set("assignment:list", 1)
	c.Set("assignment:42", 2)
	c.Set("profile:me", 3)

	removed := c.ClearByPrefix("assignment:")
	assert.Equal(t, 2, removed)

	_, ok := c.Get("assignment:list")
	assert.False(t, ok)
	_, ok = c.Get("assignment:42")
	assert.False(t, ok)

	v, ok := c.Get("profile:me")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}
