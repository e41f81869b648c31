package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter admits or refuses one request for a key
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// maxTrackedKeys bounds memory before idle keys are swept
const maxTrackedKeys = 1024

// SlidingWindowLimiter keeps the admission times of each key in memory and
// admits a request while fewer than limit fall inside the trailing window
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewSlidingWindowLimiter creates an in-process limiter
func NewSlidingWindowLimiter(limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *SlidingWindowLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.hits) > maxTrackedKeys {
		l.sweep(cutoff)
	}

	recent := trim(l.hits[key], cutoff)
	if len(recent) >= l.limit {
		l.hits[key] = recent
		return false, nil
	}
	l.hits[key] = append(recent, now)
	return true, nil
}

func (l *SlidingWindowLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.hits, key)
	l.mu.Unlock()
	return nil
}

// sweep drops keys with no admission inside the window; l.mu must be held
func (l *SlidingWindowLimiter) sweep(cutoff time.Time) {
	for key, times := range l.hits {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}

// trim drops leading times at or before cutoff; times are ascending
func trim(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}

// keyedLimiter namespaces keys so one backing limiter can serve several uses
type keyedLimiter struct {
	limiter RateLimiter
	prefix  string
}

func (k keyedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return k.limiter.Allow(ctx, k.prefix+key)
}

// IPRateLimiter throttles unauthenticated calls per client address
type IPRateLimiter struct{ keyedLimiter }

// NewIPRateLimiter allows requestsPerMinute per IP in process
func NewIPRateLimiter(requestsPerMinute int) *IPRateLimiter {
	return NewIPRateLimiterWith(NewSlidingWindowLimiter(requestsPerMinute, time.Minute))
}

// NewIPRateLimiterWith keys an existing limiter by client IP
func NewIPRateLimiterWith(limiter RateLimiter) *IPRateLimiter {
	return &IPRateLimiter{keyedLimiter{limiter: limiter, prefix: "ip:"}}
}

// UserRateLimiter throttles authenticated calls per user id
type UserRateLimiter struct{ keyedLimiter }

// NewUserRateLimiter allows requestsPerMinute per user in process
func NewUserRateLimiter(requestsPerMinute int) *UserRateLimiter {
	return NewUserRateLimiterWith(NewSlidingWindowLimiter(requestsPerMinute, time.Minute))
}

// NewUserRateLimiterWith keys an existing limiter by user id
func NewUserRateLimiterWith(limiter RateLimiter) *UserRateLimiter {
	return &UserRateLimiter{keyedLimiter{limiter: limiter, prefix: "user:"}}
}
