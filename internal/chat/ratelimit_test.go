// White-box tests for the token bucket rate limiter.
package chat

import (
	"testing"
	"time"
)

// TestRateLimiterBurst verifies that the bucket allows exactly the burst
// size before refusing.
func TestRateLimiterBurst(t *testing.T) {
	rl := newRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !rl.allow() {
			t.Fatalf("request %d refused within burst", i+1)
		}
	}
	if rl.allow() {
		t.Error("request beyond burst allowed")
	}
}

// TestRateLimiterRefill verifies that tokens come back over time.
func TestRateLimiterRefill(t *testing.T) {
	rl := newRateLimiter(2, 100*time.Millisecond)

	rl.allow()
	rl.allow()
	if rl.allow() {
		t.Fatal("bucket not drained")
	}

	time.Sleep(120 * time.Millisecond)
	if !rl.allow() {
		t.Error("bucket did not refill after the interval")
	}
}

// TestRateLimiterSanitizesArguments verifies that non-positive parameters
// fall back to a working limiter.
func TestRateLimiterSanitizesArguments(t *testing.T) {
	rl := newRateLimiter(0, 0)
	if rl == nil {
		t.Fatal("limiter is nil")
	}
	if !rl.allow() {
		t.Error("sanitized limiter refused its first request")
	}
}
