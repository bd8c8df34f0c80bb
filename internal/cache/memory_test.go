package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemorySetGetWithinTTL(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 60))
	v, ok := c.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)
}

func TestMemoryExpiresAfterTTL(t *testing.T) {
	c := NewMemory()
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 1))

	now = now.Add(2 * time.Second)
	_, ok := c.Get(ctx, "k")
	require.False(t, ok)
}

func TestMemoryDelPrefix(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "user:1:a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "user:1:b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "user:2:a", []byte("3"), 0))

	require.NoError(t, c.DelPrefix(ctx, "user:1:"))

	_, ok := c.Get(ctx, "user:1:a")
	require.False(t, ok)
	_, ok = c.Get(ctx, "user:2:a")
	require.True(t, ok)
}

func TestMemoryIncr(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()
	n, err := c.Incr(ctx, "counter")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	n, err = c.Incr(ctx, "counter")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}
