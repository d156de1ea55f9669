package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

func newMiniredisClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(&RedisConfig{Mode: "standalone", Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewClient_Standalone_Success(t *testing.T) {
	client, _ := newMiniredisClient(t)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestNewClient_AppliesDefaults(t *testing.T) {
	cfg := &RedisConfig{}
	applyDefaults(cfg)
	assert.Equal(t, "standalone", cfg.Mode)
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	cfg := &RedisConfig{Mode: "standalone", Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond}
	client, err := NewClient(cfg, logging.NewNopLogger())
	require.Error(t, err)
	assert.Nil(t, client)
	assert.True(t, errors.IsCode(err, errors.CodeStoreUnavailable))
}

func TestClient_Operations(t *testing.T) {
	client, mr := newMiniredisClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "session:1", "form", time.Minute).Err())
	val, err := client.Get(ctx, "session:1").Result()
	require.NoError(t, err)
	assert.Equal(t, "form", val)

	ok, err := client.Expire(ctx, "session:1", 2*time.Minute).Result()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Minute, mr.TTL("session:1"))

	exists, err := client.Exists(ctx, "session:1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	deleted, err := client.Del(ctx, "session:1").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestClient_Close(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(&RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, client.Close())
	assert.NoError(t, client.Close(), "second close is a no-op")

	err = client.Get(context.Background(), "foo").Err()
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.ErrorIs(t, client.Ping(context.Background()), ErrClientClosed)
}
