package openai

import (
	"context"
	"sync"
	"time"
)

// rateLimiter is a token bucket: rate tokens refill evenly over window.
type rateLimiter struct {
	mu       sync.Mutex
	lastTime time.Time
	tokens   int

	window time.Duration
	rate   int
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		window:   window,
		rate:     rate,
		lastTime: time.Now(),
		tokens:   rate,
	}
}

// Acquire blocks until a token is available or ctx is done. With the bucket
// empty it polls at the refill interval, 1/rate of the window.
func (rl *rateLimiter) Acquire(ctx context.Context) error {
	for !rl.tryAcquire() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rl.window / time.Duration(rl.rate)):
		}
	}
	return nil
}

func (rl *rateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastTime)
	rl.lastTime = now

	// Refill proportionally to elapsed time, capped at the bucket size.
	rl.tokens += int(elapsed.Nanoseconds() * int64(rl.rate) / rl.window.Nanoseconds())
	rl.tokens = min(rl.tokens, rl.rate)
	if rl.tokens <= 0 {
		return false
	}

	rl.tokens--
	return true
}
