package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGet(t *testing.T) {
	c := New[string]()
	c.Set("key1", "value1", time.Second)
	val, ok := c.Get("key1")
	assert.True(t, ok)
	assert.Equal(t, "value1", val)
}

func TestExpiration(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[int]()
	c.now = func() time.Time { return now }
	c.Set("key1", 42, 5*time.Second)

	now = now.Add(4 * time.Second)
	_, ok := c.Get("key1")
	assert.True(t, ok)

	now = now.Add(time.Second)
	_, ok = c.Get("key1")
	assert.False(t, ok)
}

func TestDelete(t *testing.T) {
	c := New[string]()
	c.Set("key1", "value1", time.Second)
	c.Delete("key1")
	_, ok := c.Get("key1")
	assert.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	c := New[string]()
	c.Set("ready:db", "ok", time.Second)
	c.Set("ready:redis", "ok", time.Second)
	c.Set("other", "x", time.Second)
	c.Invalidate("ready:")

	_, ok1 := c.Get("ready:db")
	_, ok2 := c.Get("ready:redis")
	_, ok3 := c.Get("other")
	assert.False(t, ok1)
	assert.False(t, ok2)
	assert.True(t, ok3)
}
