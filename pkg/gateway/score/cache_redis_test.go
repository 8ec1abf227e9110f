package score

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T) (*redisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	c, err := newRedisCache(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c, mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	_, hit, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, c.Set(ctx, "alice", 87, time.Minute))

	score, hit, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 87, score)

	assert.True(t, mr.Exists("tollgate:score:alice"), "entries are namespaced under the key prefix")
}

func TestRedisCacheTTLExpiry(t *testing.T) {
	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "alice", 87, time.Minute))

	mr.FastForward(2 * time.Minute)

	_, hit, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCacheZeroTTLSkipsWrite(t *testing.T) {
	c, mr := newTestRedisCache(t)

	require.NoError(t, c.Set(context.Background(), "alice", 87, 0))
	assert.False(t, mr.Exists("tollgate:score:alice"))
}

func TestRedisCacheNonNumericEntry(t *testing.T) {
	c, mr := newTestRedisCache(t)

	require.NoError(t, mr.Set("tollgate:score:bob", "garbage"))

	_, _, err := c.Get(context.Background(), "bob")
	assert.Error(t, err)
}

func TestNewRedisCacheRequiresURL(t *testing.T) {
	_, err := newRedisCache(context.Background(), "")
	assert.Error(t, err)
}

func TestNewRedisCacheRejectsBadURL(t *testing.T) {
	_, err := newRedisCache(context.Background(), "not-a-redis-url")
	assert.Error(t, err)
}

func TestNewRedisCacheFailsWhenUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = newRedisCache(context.Background(), "redis://"+addr)
	assert.Error(t, err)
}
