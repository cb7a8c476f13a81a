package middleware

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4/middleware"
)

// fixedWindowStore implements echo's middleware.RateLimiterStore with a
// fixed-window counter per identifier (remote IP), matching the hub's
// "100 requests per 15 minutes" limit rather than echo's built-in
// token-bucket GCRA store.
type fixedWindowStore struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters map[string]*windowCounter
}

type windowCounter struct {
	count      int
	windowEnds time.Time
}

// NewFixedWindowStore builds a RateLimiterStore allowing limit requests per
// identifier within window, resetting the count when window elapses.
func NewFixedWindowStore(limit int, window time.Duration) middleware.RateLimiterStore {
	return &fixedWindowStore{
		limit:    limit,
		window:   window,
		counters: make(map[string]*windowCounter),
	}
}

// Allow satisfies middleware.RateLimiterStore.
func (s *fixedWindowStore) Allow(identifier string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c, ok := s.counters[identifier]
	if !ok || now.After(c.windowEnds) {
		c = &windowCounter{count: 0, windowEnds: now.Add(s.window)}
		s.counters[identifier] = c
	}

	if c.count >= s.limit {
		return false, nil
	}
	c.count++
	return true, nil
}
