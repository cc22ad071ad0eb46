package session

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires Redis running on localhost:6379.
const testRedisAddr = "localhost:6379"

func setupTestRedisStore(t *testing.T, opts ...Option) (*RedisStore, *redis.Client) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available at %s: %v", testRedisAddr, err)
	}

	prefix := "caltodo-test:" + t.Name() + ":"
	opts = append([]Option{WithKeyPrefix(prefix)}, opts...)
	store := NewRedisStore(client, opts...)

	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		_ = client.Close()
	})
	return store, client
}

func TestRedisStore_PutGetDelete(t *testing.T) {
	store, _ := setupTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "sid", testCredential()))
	got, err := store.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, testCredential().AccessToken, got.AccessToken)
	assert.True(t, testCredential().Expiry.Equal(got.Expiry))

	require.NoError(t, store.Delete(ctx, "sid"))
	_, err = store.Get(ctx, "sid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_TTL(t *testing.T) {
	store, client := setupTestRedisStore(t, WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "sid", testCredential()))

	ttl, err := client.TTL(ctx, store.key("sid")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestRedisStore_Encrypted(t *testing.T) {
	enc, err := NewTokenEncryption(testKey())
	require.NoError(t, err)
	store, client := setupTestRedisStore(t, WithEncryption(enc))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "sid", testCredential()))

	raw, err := client.Get(ctx, store.key("sid")).Result()
	require.NoError(t, err)
	assert.NotContains(t, raw, "refresh", "tokens must not be stored in clear text")

	got, err := store.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "refresh", got.RefreshToken)
}

func TestNewRedisStoreFromURL(t *testing.T) {
	store, err := NewRedisStoreFromURL("redis://localhost:6379/2", WithKeyPrefix("p:"))
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "p:abc", store.key("abc"))

	_, err = NewRedisStoreFromURL("http://not-redis")
	assert.Error(t, err)
}
