package session

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/database/redis"
	"github.com/JohanRGustafsson/valuation-model/internal/infrastructure/monitoring/logging"
	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

const sessionKeyPrefix = "session:"

// RedisStore keeps sessions as JSON documents whose Redis TTL matches the
// session expiry, so abandoned sessions disappear without a sweeper.
type RedisStore struct {
	cache  redis.Cache
	ttl    time.Duration
	now    func() time.Time
	logger logging.Logger
}

// NewRedisStore wraps cache. The cache should be built without TTL jitter.
func NewRedisStore(cache redis.Cache, ttl time.Duration, log logging.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &RedisStore{cache: cache, ttl: ttl, now: time.Now, logger: log}
}

func (r *RedisStore) Create(ctx context.Context) (*Session, error) {
	s := newSession(r.now(), r.ttl)
	if err := r.cache.Set(ctx, sessionKeyPrefix+s.ID, s, r.ttl); err != nil {
		return nil, unavailable(err)
	}
	return s, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	var s Session
	err := r.cache.Get(ctx, sessionKeyPrefix+id, &s)
	if stderrors.Is(err, redis.ErrCacheMiss) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, unavailable(err)
	}
	if s.Expired(r.now()) {
		return nil, expired(id)
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	ok, err := r.cache.Exists(ctx, sessionKeyPrefix+s.ID)
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return notFound(s.ID)
	}
	now := r.now()
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(r.ttl)
	if err := r.cache.Set(ctx, sessionKeyPrefix+s.ID, s, r.ttl); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	ok, err := r.cache.Exists(ctx, sessionKeyPrefix+id)
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return notFound(id)
	}
	if err := r.cache.Delete(ctx, sessionKeyPrefix+id); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.cache.Ping(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func unavailable(err error) error {
	return errors.Wrap(err, errors.CodeStoreUnavailable, "session store unavailable")
}
