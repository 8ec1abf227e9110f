package score

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerCacheRoundTrip(t *testing.T) {
	c, err := newBadgerCache(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	_, hit, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "alice", 87, time.Hour))

	score, hit, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 87, score)
}

func TestBadgerCacheZeroTTLSkipsWrite(t *testing.T) {
	c, err := newBadgerCache(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Set(context.Background(), "alice", 87, 0))

	_, hit, err := c.Get(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestBadgerCachePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	c, err := newBadgerCache(dir)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "alice", 87, time.Hour))
	require.NoError(t, c.Close())

	reopened, err := newBadgerCache(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	score, hit, err := reopened.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 87, score)
}

func TestNewBadgerCacheRequiresPath(t *testing.T) {
	_, err := newBadgerCache("")
	assert.Error(t, err)
}
