package httpapi

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if res := rl.Allow("client-a"); !res.Allowed {
			t.Fatalf("Allow call %d: expected ok, got rejected", i)
		}
	}
}

func TestRateLimiterRejectsOverBurst(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	rl.Allow("client-b")
	rl.Allow("client-b")
	res := rl.Allow("client-b")
	if res.Allowed {
		t.Fatal("Allow: expected the 3rd call within the window to be rejected")
	}
	if res.RetryAfterSec <= 0 {
		t.Fatalf("Allow: expected a positive RetryAfterSec when rejected, got %d", res.RetryAfterSec)
	}
	if res.ResetUnix <= time.Now().Unix() {
		t.Fatalf("Allow: expected ResetUnix in the future, got %d", res.ResetUnix)
	}
}

func TestRateLimiterTracksKeysIndependently(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	if res := rl.Allow("client-c"); !res.Allowed {
		t.Fatal("Allow(client-c): expected ok on first call")
	}
	if res := rl.Allow("client-d"); !res.Allowed {
		t.Fatal("Allow(client-d): expected ok, independent of client-c's budget")
	}
	if res := rl.Allow("client-c"); res.Allowed {
		t.Fatal("Allow(client-c): expected rejection on 2nd call within the window")
	}
}

func TestRateLimiterRemainingIsMonotonicallyNonIncreasing(t *testing.T) {
	rl := newRateLimiter(5, time.Minute)
	prev := rl.Allow("client-e").Remaining
	for i := 0; i < 4; i++ {
		res := rl.Allow("client-e")
		if res.Remaining > prev {
			t.Fatalf("Allow call %d: remaining grew from %d to %d within the window", i, prev, res.Remaining)
		}
		prev = res.Remaining
	}
}
