package score

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPrincipal(t *testing.T) {
	// Digest computed independently with sha256sum.
	assert.Equal(t,
		"2bd806c97f0e00af1a1fc3328fa763a9269723c8db8fac4f93af71db186d6e90",
		HashPrincipal("alice"))
	assert.Equal(t,
		"81b637d8fcd2c6da6359e6963113a1170de795e4b725b84d1e0b4cfd9ec58ce9",
		HashPrincipal("bob"))
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		HashPrincipal(""))
}

func TestHashPrincipalIsDeterministic(t *testing.T) {
	first := HashPrincipal("service-account-1")
	second := HashPrincipal("service-account-1")

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.NotEqual(t, first, HashPrincipal("service-account-2"))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		score int
		want  int
	}{
		{name: "Zero", score: 0, want: 0},
		{name: "Mid", score: 55, want: 55},
		{name: "Max", score: 100, want: 100},
		{name: "Negative", score: -1, want: 0},
		{name: "AboveMax", score: 101, want: 0},
		{name: "FarAboveMax", score: 9000, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize(tt.score))
		})
	}
}

func TestProviderTypeIsValid(t *testing.T) {
	assert.True(t, ProviderTypeDirect.IsValid())
	assert.True(t, ProviderTypeCached.IsValid())
	assert.True(t, ProviderTypeRemote.IsValid())
	assert.False(t, ProviderType("").IsValid())
	assert.False(t, ProviderType("oracle").IsValid())
}

func TestCacheBackendIsValid(t *testing.T) {
	assert.True(t, CacheBackendMemory.IsValid())
	assert.True(t, CacheBackendRedis.IsValid())
	assert.True(t, CacheBackendBadger.IsValid())
	assert.False(t, CacheBackend("").IsValid())
	assert.False(t, CacheBackend("memcached").IsValid())
}

func TestNewProviderDefaultsToDirect(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{}, newFakeStore())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	assert.IsType(t, &DirectProvider{}, p)
}

func TestNewProviderCached(t *testing.T) {
	cfg := Config{
		Type:  ProviderTypeCached,
		Cache: CacheConfig{Backend: CacheBackendMemory},
	}

	p, err := NewProvider(context.Background(), cfg, newFakeStore())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	assert.IsType(t, &CachedProvider{}, p)
}

func TestNewProviderRemote(t *testing.T) {
	cfg := Config{
		Type:   ProviderTypeRemote,
		Remote: RemoteConfig{APIURL: "https://scores.example.com"},
	}

	p, err := NewProvider(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	assert.IsType(t, &RemoteProvider{}, p)
}

func TestNewProviderRequiresStore(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Type: ProviderTypeDirect}, nil)
	assert.Error(t, err)

	_, err = NewProvider(context.Background(), Config{Type: ProviderTypeCached}, nil)
	assert.Error(t, err)
}

func TestNewProviderUnknownType(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Type: "oracle"}, newFakeStore())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown score provider type")
}

func TestNewProviderUnknownCacheBackend(t *testing.T) {
	cfg := Config{
		Type:  ProviderTypeCached,
		Cache: CacheConfig{Backend: "memcached"},
	}

	_, err := NewProvider(context.Background(), cfg, newFakeStore())
	assert.Error(t, err)
}
