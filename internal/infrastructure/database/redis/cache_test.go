package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

type CacheTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache Cache
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	log := logging.NewNopLogger()
	client := NewClientFromUniversal(db, nil, log)
	s.cache = NewRedisCache(client, log, WithPrefix("test:"), WithJitter(0))
}

func (s *CacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

type npvEntry struct {
	Phase string  `json:"phase"`
	NPV   float64 `json:"npv"`
}

func (s *CacheTestSuite) TestGet_CacheHit() {
	val := npvEntry{Phase: "phase3", NPV: 727.27}
	data, _ := json.Marshal(val)
	s.mock.ExpectGet("test:npv:abc").SetVal(string(data))

	var dest npvEntry
	s.Require().NoError(s.cache.Get(context.Background(), "npv:abc", &dest))
	s.Equal(val, dest)
}

func (s *CacheTestSuite) TestGet_CacheMiss() {
	s.mock.ExpectGet("test:npv:abc").RedisNil()

	var dest npvEntry
	err := s.cache.Get(context.Background(), "npv:abc", &dest)
	s.ErrorIs(err, ErrCacheMiss)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
}

func (s *CacheTestSuite) TestGet_NullMarker() {
	s.mock.ExpectGet("test:npv:abc").SetVal(nullMarker)

	var dest npvEntry
	s.ErrorIs(s.cache.Get(context.Background(), "npv:abc", &dest), ErrCacheMiss)
}

func (s *CacheTestSuite) TestGet_BackendError() {
	s.mock.ExpectGet("test:npv:abc").SetErr(stderrors.New("connection reset"))

	var dest npvEntry
	err := s.cache.Get(context.Background(), "npv:abc", &dest)
	s.Error(err)
	s.NotErrorIs(err, ErrCacheMiss)
}

func (s *CacheTestSuite) TestSet_Success() {
	val := npvEntry{Phase: "filed", NPV: 900}
	data, _ := json.Marshal(val)
	s.mock.ExpectSet("test:npv:def", data, time.Minute).SetVal("OK")

	s.NoError(s.cache.Set(context.Background(), "npv:def", val, time.Minute))
}

func (s *CacheTestSuite) TestSet_DefaultTTL() {
	data, _ := json.Marshal(1)
	s.mock.ExpectSet("test:k", data, 15*time.Minute).SetVal("OK")

	s.NoError(s.cache.Set(context.Background(), "k", 1, 0))
}

func (s *CacheTestSuite) TestDelete_Success() {
	s.mock.ExpectDel("test:k1", "test:k2").SetVal(2)
	s.NoError(s.cache.Delete(context.Background(), "k1", "k2"))
}

func (s *CacheTestSuite) TestExists_True() {
	s.mock.ExpectExists("test:k1").SetVal(1)

	exists, err := s.cache.Exists(context.Background(), "k1")
	s.NoError(err)
	s.True(exists)
}

func (s *CacheTestSuite) TestGetOrSet_Hit() {
	val := npvEntry{Phase: "phase1", NPV: 120}
	data, _ := json.Marshal(val)
	s.mock.ExpectGet("test:key1").SetVal(string(data))

	var dest npvEntry
	err := s.cache.GetOrSet(context.Background(), "key1", &dest, time.Minute, func(ctx context.Context) (interface{}, error) {
		s.Fail("loader must not run on a hit")
		return nil, nil
	})
	s.NoError(err)
	s.Equal(val, dest)
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func TestGetOrSet_LoadsOnceAndCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(&RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()
	cache := NewRedisCache(client, logging.NewNopLogger(), WithPrefix("t:"))

	var calls int32
	loader := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return npvEntry{Phase: "phase2", NPV: 300}, nil
	}

	var first, second npvEntry
	require.NoError(t, cache.GetOrSet(context.Background(), "k", &first, time.Minute, loader))
	require.NoError(t, cache.GetOrSet(context.Background(), "k", &second, time.Minute, loader))

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists("t:k"))
}

func TestGetOrSet_NilResultCachedAsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(&RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()
	cache := NewRedisCache(client, logging.NewNopLogger(), WithPrefix("t:"))

	var dest npvEntry
	err = cache.GetOrSet(context.Background(), "gone", &dest, time.Minute, func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrCacheMiss)

	raw, err := mr.Get("t:gone")
	require.NoError(t, err)
	assert.Equal(t, nullMarker, raw)
}

func TestDeleteByPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(&RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()
	cache := NewRedisCache(client, logging.NewNopLogger(), WithPrefix("t:"))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "result:a", 1, time.Minute))
	require.NoError(t, cache.Set(ctx, "result:b", 2, time.Minute))
	require.NoError(t, cache.Set(ctx, "session:c", 3, time.Minute))

	n, err := cache.DeleteByPrefix(ctx, "result:")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.True(t, mr.Exists("t:session:c"))
}
