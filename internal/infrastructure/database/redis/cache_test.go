package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/tracefold/anonymizer/internal/infrastructure/monitoring/logging"
	"github.com/tracefold/anonymizer/pkg/errors"
)

type cachedPrediction struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

type CacheTestSuite struct {
	suite.Suite
	client *Client
	mock   redismock.ClientMock
	cache  Cache
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	s.client = NewClientWithRDB(db, logging.NewNopLogger())
	s.cache = NewCache(s.client, logging.NewNopLogger(), WithPrefix("test:"))
}

func (s *CacheTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
}

func (s *CacheTestSuite) TestGet_Hit() {
	want := cachedPrediction{Intent: "file_claim", Confidence: 0.92}
	data, _ := json.Marshal(want)
	s.mock.ExpectGet("test:intent:abc").SetVal(string(data))

	var got cachedPrediction
	s.NoError(s.cache.Get(context.Background(), "intent:abc", &got))
	s.Equal(want, got)
}

func (s *CacheTestSuite) TestGet_Miss() {
	s.mock.ExpectGet("test:intent:abc").RedisNil()

	var got cachedPrediction
	err := s.cache.Get(context.Background(), "intent:abc", &got)
	s.ErrorIs(err, ErrCacheMiss)
}

func (s *CacheTestSuite) TestGet_NullSentinelIsMiss() {
	s.mock.ExpectGet("test:intent:abc").SetVal(nullSentinel)

	var got cachedPrediction
	s.ErrorIs(s.cache.Get(context.Background(), "intent:abc", &got), ErrCacheMiss)
}

func (s *CacheTestSuite) TestGet_CorruptPayload() {
	s.mock.ExpectGet("test:intent:abc").SetVal("{not json")

	var got cachedPrediction
	err := s.cache.Get(context.Background(), "intent:abc", &got)
	s.True(errors.IsCode(err, errors.ErrCodeSerialization))
}

func (s *CacheTestSuite) TestDelete_NoKeysIsNoOp() {
	s.NoError(s.cache.Delete(context.Background()))
}

func (s *CacheTestSuite) TestDelete() {
	s.mock.ExpectDel("test:a", "test:b").SetVal(2)
	s.NoError(s.cache.Delete(context.Background(), "a", "b"))
}

func (s *CacheTestSuite) TestExists() {
	s.mock.ExpectExists("test:a").SetVal(1)
	ok, err := s.cache.Exists(context.Background(), "a")
	s.NoError(err)
	s.True(ok)
}

func (s *CacheTestSuite) TestGetOrSet_HitSkipsLoader() {
	want := cachedPrediction{Intent: "greeting", Confidence: 0.99}
	data, _ := json.Marshal(want)
	s.mock.ExpectGet("test:intent:k").SetVal(string(data))

	loaderCalled := false
	var got cachedPrediction
	err := s.cache.GetOrSet(context.Background(), "intent:k", &got, time.Minute,
		func(context.Context) (interface{}, error) {
			loaderCalled = true
			return nil, nil
		})
	s.NoError(err)
	s.False(loaderCalled)
	s.Equal(want, got)
}

func (s *CacheTestSuite) TestGetOrSet_LoaderErrorPropagates() {
	s.mock.ExpectGet("test:intent:k").RedisNil()

	sentinel := errors.New(errors.ErrCodeIntentPredictFailed, "model down")
	var got cachedPrediction
	err := s.cache.GetOrSet(context.Background(), "intent:k", &got, time.Minute,
		func(context.Context) (interface{}, error) {
			return nil, sentinel
		})
	s.ErrorIs(err, sentinel)
}

func (s *CacheTestSuite) TestGetOrSet_NilLoadCachesNullSentinel() {
	s.mock.ExpectGet("test:intent:k").RedisNil()
	s.mock.ExpectSet("test:intent:k", nullSentinel, 30*time.Second).SetVal("OK")

	var got cachedPrediction
	err := s.cache.GetOrSet(context.Background(), "intent:k", &got, time.Minute,
		func(context.Context) (interface{}, error) {
			return nil, nil
		})
	s.ErrorIs(err, ErrCacheMiss)
}

func TestCacheTestSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func TestJitterTTL_WithinTenPercent(t *testing.T) {
	c := &redisCache{}
	base := time.Minute
	for i := 0; i < 100; i++ {
		got := c.jitterTTL(base)
		assert.GreaterOrEqual(t, got, time.Duration(float64(base)*0.9))
		assert.LessOrEqual(t, got, time.Duration(float64(base)*1.1))
	}
	assert.Zero(t, c.jitterTTL(0))
}
