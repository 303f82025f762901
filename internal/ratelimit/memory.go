package ratelimit

import (
	"context"
	"sync"
	"time"

	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Store adapts a ulule/limiter store to the Limiter interface. It serves
// single-instance deployments that run without Redis.
type Store struct {
	Store limiter.Store

	mu    sync.Mutex
	rates map[limiter.Rate]*limiter.Limiter
}

// NewMemoryStore returns a Store backed by an in-process fixed window.
func NewMemoryStore(prefix string) *Store {
	return &Store{Store: memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          prefix,
		CleanUpInterval: time.Minute,
	})}
}

// Allow implements Limiter.
func (s *Store) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	if s == nil || s.Store == nil || max <= 0 || window <= 0 {
		return true, max, time.Now().Add(window), nil
	}
	lctx, err := s.limiterFor(window, max).Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !lctx.Reached, int(lctx.Remaining), time.Unix(lctx.Reset, 0), nil
}

func (s *Store) limiterFor(window time.Duration, max int) *limiter.Limiter {
	rate := limiter.Rate{Period: window, Limit: int64(max)}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rates == nil {
		s.rates = make(map[limiter.Rate]*limiter.Limiter)
	}
	l, ok := s.rates[rate]
	if !ok {
		l = limiter.New(s.Store, rate)
		s.rates[rate] = l
	}
	return l
}
