package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/database/redis"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	log := logging.NewNopLogger()
	client, err := redis.NewClient(&redis.RedisConfig{Addr: mr.Addr()}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	cache := redis.NewRedisCache(client, log, redis.WithPrefix("test:"), redis.WithJitter(0))
	return NewRedisStore(cache, ttl, log), mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, mr := newTestRedisStore(t, 10*time.Minute)
	ctx := context.Background()

	s, err := store.Create(ctx)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:session:"+s.ID))
	assert.Equal(t, 10*time.Minute, mr.TTL("test:session:"+s.ID))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Form, got.Form)

	got.Form.DiscountRatePct = 9
	require.NoError(t, store.Save(ctx, got))

	again, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 9.0, again.Form.DiscountRatePct)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	s, err := store.Create(ctx)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, s.ID)
	assert.True(t, errors.IsCode(err, errors.CodeSessionNotFound))
	assert.True(t, errors.IsCode(store.Save(ctx, s), errors.CodeSessionNotFound))
}

func TestRedisStore_Delete(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	ctx := context.Background()

	s, err := store.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, s.ID))
	assert.False(t, mr.Exists("test:session:"+s.ID))
	assert.True(t, errors.IsNotFound(store.Delete(ctx, s.ID)))
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newTestRedisStore(t, time.Minute)
	mr.SetError("LOADING redis is loading the dataset")

	_, err := store.Create(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeStoreUnavailable))
	assert.Error(t, store.Ping(context.Background()))
}
