package score

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryCache(t *testing.T, maxEntries int, clock clockwork.Clock) *memoryCache {
	t.Helper()

	c := newMemoryCache(maxEntries, clock)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewCacheDefaultsToMemory(t *testing.T) {
	c, err := newCache(context.Background(), CacheConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.IsType(t, &memoryCache{}, c)
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestMemoryCache(t, 0, clock)
	ctx := context.Background()

	_, hit, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "alice", 87, time.Minute))

	score, hit, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 87, score)
}

func TestMemoryCacheExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestMemoryCache(t, 0, clock)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "alice", 87, 30*time.Second))

	clock.Advance(29 * time.Second)
	_, hit, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, hit, "entry must stay valid until its TTL passes")

	clock.Advance(2 * time.Second)
	_, hit, err = c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, hit, "entry must expire after its TTL")
}

func TestMemoryCacheZeroTTLSkipsWrite(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestMemoryCache(t, 0, clock)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "alice", 87, 0))
	require.NoError(t, c.Set(ctx, "bob", 42, -time.Minute))

	assert.Equal(t, 0, c.size())
}

func TestMemoryCacheFullDropsWrites(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestMemoryCache(t, 2, clock)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, time.Hour))
	require.NoError(t, c.Set(ctx, "b", 2, time.Hour))
	require.NoError(t, c.Set(ctx, "c", 3, time.Hour))

	assert.Equal(t, 2, c.size())
	_, hit, err := c.Get(ctx, "c")
	require.NoError(t, err)
	assert.False(t, hit, "write into a full cache is dropped")
}

func TestMemoryCacheFullUpdatesExistingKey(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestMemoryCache(t, 2, clock)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", 1, time.Hour))
	require.NoError(t, c.Set(ctx, "b", 2, time.Hour))
	require.NoError(t, c.Set(ctx, "a", 50, time.Hour))

	score, hit, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 50, score)
}

func TestMemoryCacheFullSweepsExpiredEntries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestMemoryCache(t, 2, clock)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", 1, 10*time.Second))
	require.NoError(t, c.Set(ctx, "long", 2, time.Hour))

	clock.Advance(30 * time.Second)

	require.NoError(t, c.Set(ctx, "fresh", 3, time.Hour))

	score, hit, err := c.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, hit, "sweeping the expired entry must free a slot")
	assert.Equal(t, 3, score)
}

func TestMemoryCacheJanitorSweeps(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := newTestMemoryCache(t, 0, clock)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "alice", 87, 30*time.Second))
	require.NoError(t, c.Set(ctx, "bob", 42, 30*time.Second))

	clock.BlockUntil(1)
	clock.Advance(janitorInterval)

	assert.Eventually(t, func() bool {
		return c.size() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMemoryCacheCloseIsIdempotent(t *testing.T) {
	c := newMemoryCache(0, clockwork.NewFakeClock())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
