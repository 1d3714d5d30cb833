// Package ratelimit keeps outbound calls within an upstream's request budget.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter blocks until one more request may be sent.
type Limiter interface {
	Wait(ctx context.Context) error
}

type RateLimit struct {
	Window      time.Duration // e.g. 1 minute
	MaxRequests int           // max requests per window
}

// SlidingWindow is a Redis sorted-set limiter shared by every replica.
type SlidingWindow struct {
	redis *redis.Client
	key   string
	limit RateLimit
	poll  time.Duration
	now   func() time.Time
}

func NewSlidingWindow(client *redis.Client, name string, limit RateLimit) *SlidingWindow {
	return &SlidingWindow{
		redis: client,
		key:   fmt.Sprintf("rate_limit:%s", name),
		limit: limit,
		poll:  250 * time.Millisecond,
		now:   time.Now,
	}
}

// slideAndAdd trims the window, then records the request only if it fits.
// Running it as one script keeps concurrent replicas from overshooting the limit.
var slideAndAdd = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '0', ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// Allow records a request and reports true if it fits in the current window.
// Rejected attempts are not recorded.
func (s *SlidingWindow) Allow(ctx context.Context) (bool, error) {
	now := s.now()
	windowStart := now.Add(-s.limit.Window).UnixMilli()

	admitted, err := slideAndAdd.Run(ctx, s.redis, []string{s.key},
		strconv.FormatInt(windowStart, 10),
		strconv.FormatInt(now.UnixMilli(), 10),
		s.limit.MaxRequests,
		uuid.NewString(),
		(s.limit.Window * 2).Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis rate limit script: %w", err)
	}
	return admitted == 1, nil
}

// Wait polls Allow until the request fits or ctx ends.
func (s *SlidingWindow) Wait(ctx context.Context) error {
	for {
		ok, err := s.Allow(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.poll):
		}
	}
}

// NewLocal returns a per-process token bucket spreading limit evenly over its window.
func NewLocal(limit RateLimit) *rate.Limiter {
	every := limit.Window / time.Duration(limit.MaxRequests)
	return rate.NewLimiter(rate.Every(every), limit.MaxRequests)
}
