package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_SetGet(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	_, found := c.Get("missing")
	assert.False(t, found)

	c.Set("key", "value")
	got, found := c.Get("key")
	assert.True(t, found)
	assert.Equal(t, "value", got)
}

func TestCache_Expiry(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.SetWithTTL("short", 1, 10*time.Millisecond)

	_, found := c.Get("short")
	assert.True(t, found)

	time.Sleep(20 * time.Millisecond)

	_, found = c.Get("short")
	assert.False(t, found)
}

func TestCache_Delete(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("key", "value")
	c.Delete("key")

	_, found := c.Get("key")
	assert.False(t, found)
}

func TestCache_Invalidate(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("live:list", 1)
	c.Set("live:alice", 2)
	c.Set("other", 3)

	c.Invalidate("live:")

	_, found := c.Get("live:list")
	assert.False(t, found)
	_, found = c.Get("live:alice")
	assert.False(t, found)
	_, found = c.Get("other")
	assert.True(t, found)

	assert.Equal(t, 1, c.Size())
}
