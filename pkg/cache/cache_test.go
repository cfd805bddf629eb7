package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "cache.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSetGet(t *testing.T) {
	c := newCache(t, time.Minute)

	_, ok := c.Get("https://example.com/p1")
	assert.False(t, ok)

	require.NoError(t, c.Set("https://example.com/p1", "<html>one</html>"))

	body, ok := c.Get("https://example.com/p1")
	require.True(t, ok)
	assert.Equal(t, "<html>one</html>", body)
}

func TestSetOverwrites(t *testing.T) {
	c := newCache(t, time.Minute)

	require.NoError(t, c.Set("u", "old"))
	require.NoError(t, c.Set("u", "new"))

	body, ok := c.Get("u")
	require.True(t, ok)
	assert.Equal(t, "new", body)
}

func TestExpiry(t *testing.T) {
	c := newCache(t, 10*time.Millisecond)

	require.NoError(t, c.Set("u", "body"))
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("u")
	assert.False(t, ok)

	require.NoError(t, c.Prune())
}
