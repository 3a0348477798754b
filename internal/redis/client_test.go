package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *Client {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&Config{
		Address: mr.Addr(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func TestNewClient(t *testing.T) {
	t.Run("successful connection", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		defer mr.Close()

		client, err := NewClient(&Config{Address: mr.Addr(), PoolSize: 5})
		assert.NoError(t, err)
		assert.NotNil(t, client)

		assert.NoError(t, client.Close())
	})

	t.Run("nil config", func(t *testing.T) {
		client, err := NewClient(nil)
		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "redis config is required")
	})

	t.Run("connection failure", func(t *testing.T) {
		client, err := NewClient(&Config{Address: "127.0.0.1:1"})
		assert.Error(t, err)
		assert.Nil(t, client)
		assert.Contains(t, err.Error(), "failed to connect to Redis")
	})

	t.Run("defaults applied", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		defer mr.Close()

		config := &Config{Address: mr.Addr()}
		client, err := NewClient(config)
		require.NoError(t, err)
		defer client.Close()

		assert.Equal(t, 10, config.PoolSize)
		assert.Equal(t, 250*time.Millisecond, config.Timeout)
	})
}

func TestClient_Health(t *testing.T) {
	client := setupTestRedis(t)
	assert.NoError(t, client.Health())
}

func TestClient_IncrementWindow(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	t.Run("counts include the new event", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			res, err := client.IncrementWindow(ctx, "win:a", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, i, res.Count)
			assert.False(t, res.OldestAt.IsZero())
		}
	})

	t.Run("aged-out events are pruned", func(t *testing.T) {
		window := 50 * time.Millisecond

		_, err := client.IncrementWindow(ctx, "win:b", window)
		require.NoError(t, err)

		time.Sleep(70 * time.Millisecond)

		res, err := client.IncrementWindow(ctx, "win:b", window)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Count)
	})

	t.Run("concurrent events at the same instant all count", func(t *testing.T) {
		// Members are unique per event, so identical timestamps never
		// collapse into one sorted-set entry.
		for i := 1; i <= 5; i++ {
			res, err := client.IncrementWindow(ctx, "win:c", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, i, res.Count)
		}
	})
}

func TestClient_CountWindow(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	res, err := client.CountWindow(ctx, "win:d", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
	assert.True(t, res.OldestAt.IsZero())

	for i := 0; i < 4; i++ {
		_, err = client.IncrementWindow(ctx, "win:d", time.Minute)
		require.NoError(t, err)
	}

	// Reads never mutate the window.
	for i := 0; i < 10; i++ {
		res, err = client.CountWindow(ctx, "win:d", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 4, res.Count)
	}

	t.Run("aged-out events are excluded by score", func(t *testing.T) {
		window := 50 * time.Millisecond
		_, err := client.IncrementWindow(ctx, "win:e", window)
		require.NoError(t, err)

		time.Sleep(70 * time.Millisecond)

		res, err := client.CountWindow(ctx, "win:e", window)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Count)
	})
}

func TestClient_ForgiveWindow(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.IncrementWindow(ctx, "win:f", time.Minute)
		require.NoError(t, err)
	}

	require.NoError(t, client.ForgiveWindow(ctx, "win:f"))

	res, err := client.CountWindow(ctx, "win:f", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	t.Run("unknown key is a no-op", func(t *testing.T) {
		assert.NoError(t, client.ForgiveWindow(ctx, "win:none"))
	})
}

func TestClient_ClearWindow(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.IncrementWindow(ctx, "win:g", time.Minute)
		require.NoError(t, err)
	}

	require.NoError(t, client.ClearWindow(ctx, "win:g"))

	res, err := client.CountWindow(ctx, "win:g", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)
}

func TestClient_CountKeys(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	_, err := client.IncrementWindow(ctx, "ratelimit:a", time.Minute)
	require.NoError(t, err)
	_, err = client.IncrementWindow(ctx, "ratelimit:b", time.Minute)
	require.NoError(t, err)
	_, err = client.IncrementWindow(ctx, "other:c", time.Minute)
	require.NoError(t, err)

	count, err := client.CountKeys(ctx, "ratelimit:*")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
