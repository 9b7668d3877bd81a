package gateway

import (
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter is a per-key token bucket, used to bound WebSocket handshake
// attempts per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewRateLimiter builds a RateLimiter allowing ratePerMinute requests per
// minute per key, with the given burst allowance. ratePerMinute <= 0
// disables limiting entirely.
func NewRateLimiter(ratePerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(float64(ratePerMinute) / 60.0),
		burst:    burst,
	}
}

// Enabled reports whether this limiter imposes any limit.
func (r *RateLimiter) Enabled() bool { return r.rps > 0 }

// Allow reports whether a request under key may proceed now.
func (r *RateLimiter) Allow(key string) bool {
	if !r.Enabled() {
		return true
	}
	r.mu.Lock()
	l, ok := r.limiters[key]
	if !ok {
		l = rate.NewLimiter(r.rps, r.burst)
		r.limiters[key] = l
	}
	r.mu.Unlock()
	return l.Allow()
}
