package notion

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket guarding Notion API requests. The sync
// loop is strictly sequential, but the limiter is still safe for
// concurrent use so callers don't have to care.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	retryAfter time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerSecond on average
// with bursts up to burstSize.
func NewRateLimiter(requestsPerSecond float64, burstSize int) *RateLimiter {
	return &RateLimiter{
		tokens:     float64(burstSize),
		maxTokens:  float64(burstSize),
		refillRate: requestsPerSecond,
		lastRefill: time.Now(),
	}
}

// DefaultRateLimiter is configured for Notion's documented ~3 rps limit.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(3.0, 10)
}

// Wait blocks until a request can be made without exceeding the rate
// limit, or until ctx is canceled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()

	now := time.Now()

	// Honor a pending retry-after window from a 429 first.
	if now.Before(r.retryAfter) {
		wait := r.retryAfter.Sub(now)
		r.mu.Unlock()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		r.mu.Lock()
		now = time.Now()
	}

	r.refill(now)

	if r.tokens < 1 {
		wait := time.Duration((1 - r.tokens) / r.refillRate * float64(time.Second))
		r.mu.Unlock()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
		r.mu.Lock()
		r.refill(time.Now())
	}

	r.tokens--
	r.mu.Unlock()
	return nil
}

// refill tops up tokens for the time elapsed. Caller holds mu.
func (r *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.tokens += elapsed * r.refillRate
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}
	r.lastRefill = now
}

// SetRetryAfter opens a wait window after a 429 response and drains the
// bucket so the window isn't followed by a burst.
func (r *RateLimiter) SetRetryAfter(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryAfter = time.Now().Add(d)
	r.tokens = 0
}
