package httpapi

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter is a per-key token bucket sized from a "N per window" preset,
// backing the auth/write/read presets registered on the server.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Every(window / time.Duration(limit)),
		burst:    limit,
	}
}

// rateLimitResult is everything a caller needs to answer a request, whether
// admitted or not: the X-RateLimit-* headers are derived from it either way
// so remaining is visibly non-increasing across a window even on 2xx
// responses, not just on the eventual 429.
type rateLimitResult struct {
	Allowed       bool
	RetryAfterSec int
	Remaining     int
	ResetUnix     int64
}

// resetDuration estimates how long key's bucket needs, from tokens
// currently available, to refill to its full burst.
func (rl *rateLimiter) resetDuration(tokens float64) time.Duration {
	if rl.r <= 0 {
		return 0
	}
	missing := float64(rl.burst) - tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / float64(rl.r) * float64(time.Second))
}

// Allow reports whether key may proceed and, either way, the remaining
// budget and the time the bucket fully resets, so both a 2xx and a 429 can
// carry accurate X-RateLimit-Remaining/X-RateLimit-Reset headers.
func (rl *rateLimiter) Allow(key string) rateLimitResult {
	rl.mu.Lock()
	lim, found := rl.limiters[key]
	if !found {
		lim = rate.NewLimiter(rl.r, rl.burst)
		rl.limiters[key] = lim
	}
	rl.mu.Unlock()

	now := time.Now()
	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return rateLimitResult{
			RetryAfterSec: 60,
			ResetUnix:     now.Add(60 * time.Second).Unix(),
		}
	}

	delay := res.Delay()
	if delay > 0 {
		res.Cancel()
		tokens := lim.TokensAt(now)
		if tokens < 0 {
			tokens = 0
		}
		return rateLimitResult{
			RetryAfterSec: int(delay/time.Second) + 1,
			Remaining:     int(tokens),
			ResetUnix:     now.Add(rl.resetDuration(tokens)).Unix(),
		}
	}

	tokens := lim.TokensAt(now)
	if tokens < 0 {
		tokens = 0
	}
	return rateLimitResult{
		Allowed:   true,
		Remaining: int(tokens),
		ResetUnix: now.Add(rl.resetDuration(tokens)).Unix(),
	}
}
