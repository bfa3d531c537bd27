package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/diagnosis/leadflow/pkg/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// testClient connects to REDIS_TEST_URL and skips when it is unset.
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	client, err := Connect(context.Background(), config.RedisConfig{URL: url})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnectRejectsBadURL(t *testing.T) {
	_, err := Connect(context.Background(), config.RedisConfig{URL: "not a url"})
	require.Error(t, err)
}

func TestWindowCounterSetsTTL(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	prefix := "test:" + uuid.NewString() + ":"
	counter := NewWindowCounter(client, prefix)

	for want := int64(1); want <= 3; want++ {
		n, err := counter.Incr(ctx, "ip", time.Minute)
		require.NoError(t, err)
		require.Equal(t, want, n)
	}

	ttl, err := client.PTTL(ctx, prefix+"ip").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
	require.LessOrEqual(t, ttl, time.Minute)
}

func TestWindowCounterRepairsMissingTTL(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	prefix := "test:" + uuid.NewString() + ":"
	counter := NewWindowCounter(client, prefix)

	require.NoError(t, client.Set(ctx, prefix+"ip", 10, 0).Err())
	t.Cleanup(func() { client.Del(ctx, prefix+"ip") })

	n, err := counter.Incr(ctx, "ip", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(11), n)

	ttl, err := client.PTTL(ctx, prefix+"ip").Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
}

func TestIdempotencyStoreClaim(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	store := NewIdempotencyStore(client)
	key := "test:idem:" + uuid.NewString()
	t.Cleanup(func() { client.Del(ctx, key) })

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.Empty(t, got)

	ok, err := store.Claim(ctx, key, "pending", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Claim(ctx, key, "pending", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, key, "done", time.Minute))
	got, err = store.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "done", got)

	require.NoError(t, store.Delete(ctx, key))
	got, err = store.Get(ctx, key)
	require.NoError(t, err)
	require.Empty(t, got)
}
