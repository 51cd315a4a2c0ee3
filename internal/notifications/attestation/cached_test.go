package attestation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"walletfeed/internal/notifications/metrics"
	"walletfeed/internal/notifications/models"
	"walletfeed/internal/notifications/ports/mocks"
)

type CachedClassifierSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	next    *mocks.MockAttestationClassifier
	cache   *InMemoryCache
	metrics *metrics.Metrics
	cached  *CachedClassifier
	agent   models.AgentIdentity
	policy  models.RestrictionPolicy
}

func TestCachedClassifierSuite(t *testing.T) {
	suite.Run(t, new(CachedClassifierSuite))
}

func (s *CachedClassifierSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.next = mocks.NewMockAttestationClassifier(s.ctrl)
	s.cache = NewInMemoryCache(time.Minute)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	s.cached = NewCachedClassifier(s.next, s.cache, WithCacheMetrics(s.metrics))
	s.agent = models.AgentIdentity{ID: "agent-1"}
}

func (s *CachedClassifierSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *CachedClassifierSuite) TestCachesVerdicts() {
	p := models.ProofRecord{ID: "p1", State: models.ProofRequestReceived}
	s.next.EXPECT().IsAttestation(gomock.Any(), p, s.agent, s.policy).Return(true, nil).Times(1)

	for range 3 {
		isAttestation, err := s.cached.IsAttestation(context.Background(), p, s.agent, s.policy)
		s.Require().NoError(err)
		s.True(isAttestation)
	}
	s.Equal(float64(2), testutil.ToFloat64(s.metrics.CacheHitsTotal))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.CacheMissesTotal))
}

func (s *CachedClassifierSuite) TestVerdictIsPerAgent() {
	p := models.ProofRecord{ID: "p1"}
	other := models.AgentIdentity{ID: "agent-2"}
	s.next.EXPECT().IsAttestation(gomock.Any(), p, s.agent, s.policy).Return(true, nil)
	s.next.EXPECT().IsAttestation(gomock.Any(), p, other, s.policy).Return(false, nil)

	first, err := s.cached.IsAttestation(context.Background(), p, s.agent, s.policy)
	s.Require().NoError(err)
	second, err := s.cached.IsAttestation(context.Background(), p, other, s.policy)
	s.Require().NoError(err)
	s.True(first)
	s.False(second)
}

func (s *CachedClassifierSuite) TestErrorsAreNotCached() {
	p := models.ProofRecord{ID: "p1"}
	gomock.InOrder(
		s.next.EXPECT().IsAttestation(gomock.Any(), p, s.agent, s.policy).Return(false, errors.New("boom")),
		s.next.EXPECT().IsAttestation(gomock.Any(), p, s.agent, s.policy).Return(false, nil),
	)

	_, err := s.cached.IsAttestation(context.Background(), p, s.agent, s.policy)
	s.Require().Error(err)

	isAttestation, err := s.cached.IsAttestation(context.Background(), p, s.agent, s.policy)
	s.Require().NoError(err)
	s.False(isAttestation)
}

func (s *CachedClassifierSuite) TestConcurrentDuplicatesClassifyOnce() {
	p := models.ProofRecord{ID: "dup"}
	s.next.EXPECT().IsAttestation(gomock.Any(), p, s.agent, s.policy).
		DoAndReturn(func(context.Context, models.ProofRecord, models.AgentIdentity, models.RestrictionPolicy) (bool, error) {
			time.Sleep(10 * time.Millisecond)
			return false, nil
		}).Times(1)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.cached.IsAttestation(context.Background(), p, s.agent, s.policy)
			s.NoError(err)
		}()
	}
	wg.Wait()
}

type failingCache struct{}

func (failingCache) Find(context.Context, Key) (Verdict, error) {
	return Verdict{}, errors.New("cache down")
}

func (failingCache) Save(context.Context, Key, Verdict) error {
	return errors.New("cache down")
}

func (s *CachedClassifierSuite) TestCacheFailureFallsBackToClassifier() {
	c := NewCachedClassifier(s.next, failingCache{})
	p := models.ProofRecord{ID: "p1"}
	s.next.EXPECT().IsAttestation(gomock.Any(), p, s.agent, s.policy).Return(true, nil)

	isAttestation, err := c.IsAttestation(context.Background(), p, s.agent, s.policy)
	s.Require().NoError(err)
	s.True(isAttestation)
}

func (s *CachedClassifierSuite) TestNewRequiresDependencies() {
	s.Panics(func() { NewCachedClassifier(nil, s.cache) })
	s.Panics(func() { NewCachedClassifier(s.next, nil) })
}

type CacheSuite struct {
	suite.Suite
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) TestInMemoryCache() {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewInMemoryCache(time.Minute)
	cache.now = func() time.Time { return now }
	key := Key{AgentID: "a", ProofID: "p"}

	s.Run("miss on empty cache", func() {
		_, err := cache.Find(context.Background(), key)
		s.ErrorIs(err, ErrCacheMiss)
	})

	s.Run("hit after save", func() {
		s.Require().NoError(cache.Save(context.Background(), key, Verdict{Attestation: true}))
		v, err := cache.Find(context.Background(), key)
		s.Require().NoError(err)
		s.True(v.Attestation)
	})

	s.Run("miss after ttl removes the entry", func() {
		now = now.Add(time.Minute)
		_, err := cache.Find(context.Background(), key)
		s.ErrorIs(err, ErrCacheMiss)
		s.Zero(cache.Len())
	})
}

func (s *CacheSuite) TestInMemoryCacheEvictsExpiredVerdicts() {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	cache := NewInMemoryCache(time.Minute)
	cache.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	for i := range 100 {
		key := Key{AgentID: "a", ProofID: fmt.Sprintf("p%d", i)}
		s.Require().NoError(cache.Save(context.Background(), key, Verdict{}))
	}
	s.Equal(100, cache.Len())

	s.Run("purge drops only expired entries", func() {
		advance(2 * time.Minute)
		s.Require().NoError(cache.Save(context.Background(), Key{AgentID: "a", ProofID: "fresh"}, Verdict{}))
		s.Equal(100, cache.Purge())
		s.Equal(1, cache.Len())
	})

	s.Run("purge loop reclaims entries nobody looks up", func() {
		advance(2 * time.Minute)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go cache.PurgeEvery(ctx, time.Millisecond)

		s.Eventually(func() bool { return cache.Len() == 0 }, time.Second, time.Millisecond)
	})
}

func (s *CacheSuite) TestRedisCacheKey() {
	s.Equal("walletfeed:attestation:agent-1:p1", verdictKey(Key{AgentID: "agent-1", ProofID: "p1"}))
}

func (s *CacheSuite) TestRedisCacheWrapsConnectionErrors() {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	cache := NewRedisCache(client, time.Minute)

	_, err := cache.Find(context.Background(), Key{AgentID: "a", ProofID: "p"})
	s.Require().Error(err)
	s.NotErrorIs(err, ErrCacheMiss)
	s.Contains(err.Error(), "find attestation verdict")

	err = cache.Save(context.Background(), Key{AgentID: "a", ProofID: "p"}, Verdict{})
	s.Require().Error(err)
	s.Contains(err.Error(), "save attestation verdict")
}
