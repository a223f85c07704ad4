package client

import (
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenCacheEmptyIsExpired(t *testing.T) {
	cache := NewTokenCache(NewMemoryStorage())
	_, ok := cache.Get()
	require.False(t, ok)
	require.True(t, cache.IsExpired())
}

func TestTokenCachePutAndExpire(t *testing.T) {
	now := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	storage := NewMemoryStorage()
	cache := NewTokenCache(storage)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Put("tok", 5*time.Minute))
	require.False(t, cache.IsExpired())

	raw, ok := storage.Get(KeyExpirationTime)
	require.True(t, ok)
	require.Equal(t, strconv.FormatInt(now.Add(5*time.Minute).UnixMilli(), 10), raw)

	now = now.Add(5 * time.Minute)
	require.False(t, cache.IsExpired(), "expiry is exclusive")

	now = now.Add(time.Millisecond)
	require.True(t, cache.IsExpired())
}

func TestTokenCacheLastWriteWins(t *testing.T) {
	cache := NewTokenCache(NewMemoryStorage())
	require.NoError(t, cache.Put("first", time.Minute))
	require.NoError(t, cache.Put("second", time.Minute))

	token, ok := cache.Get()
	require.True(t, ok)
	require.Equal(t, "second", token.Token)
}

func TestTokenCacheClear(t *testing.T) {
	cache := NewTokenCache(NewMemoryStorage())
	require.NoError(t, cache.Put("tok", time.Minute))
	require.NoError(t, cache.Clear())
	require.True(t, cache.IsExpired())
}

func TestTokenCacheUnreadableExpiry(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(KeySessionID, "tok"))
	require.NoError(t, storage.Set(KeyExpirationTime, "soon"))

	cache := NewTokenCache(storage)
	_, ok := cache.Get()
	require.False(t, ok)
	require.True(t, cache.IsExpired())
}

func TestFileStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")

	first := NewTokenCache(NewFileStorage(path))
	require.NoError(t, first.Put("persisted", time.Hour))

	second := NewTokenCache(NewFileStorage(path))
	token, ok := second.Get()
	require.True(t, ok)
	require.Equal(t, "persisted", token.Token)
	require.False(t, second.IsExpired())

	require.NoError(t, second.Clear())
	_, ok = first.Get()
	require.False(t, ok)
}
