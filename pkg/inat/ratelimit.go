package inat

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Scope names used by the executor. Additional scopes can be registered for
// endpoint classes or per-identity quotas.
const (
	// ScopeGlobal is the provider-wide request quota.
	ScopeGlobal = "global"

	// ScopeDaily is the per-day request quota.
	ScopeDaily = "daily"
)

// RateLimitBucket is a token bucket for one quota scope. Tokens are
// replenished lazily from elapsed time on each permit check; there is no
// background timer. Safe for concurrent use via atomic CAS.
type RateLimitBucket struct {
	capacity   int64
	tokens     int64
	refillRate time.Duration // time to mint one token
	lastRefill int64         // unix nanos
}

// NewRateLimitBucket creates a bucket holding at most capacity tokens, with
// one token minted every refillRate.
func NewRateLimitBucket(capacity int, refillRate time.Duration) *RateLimitBucket {
	return &RateLimitBucket{
		capacity:   int64(capacity),
		tokens:     int64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now().UnixNano(),
	}
}

// Allow reports whether a request may proceed, consuming one token if so.
func (b *RateLimitBucket) Allow() bool {
	b.refill()

	return b.consume()
}

// refill adds tokens for the time elapsed since the last refill, capped at
// capacity.
func (b *RateLimitBucket) refill() {
	now := time.Now().UnixNano()

	for {
		currentTokens := atomic.LoadInt64(&b.tokens)
		lastRefill := atomic.LoadInt64(&b.lastRefill)

		elapsed := now - lastRefill

		tokensToAdd := int64(0)
		if b.refillRate > 0 {
			tokensToAdd = elapsed / int64(b.refillRate)
		}

		if tokensToAdd == 0 {
			return
		}

		newTokens := currentTokens + tokensToAdd
		if newTokens > b.capacity {
			newTokens = b.capacity
		}

		// Advance lastRefill by whole tokens only, so fractional elapsed
		// time is not lost between checks.
		newLastRefill := lastRefill + tokensToAdd*int64(b.refillRate)

		if !atomic.CompareAndSwapInt64(&b.lastRefill, lastRefill, newLastRefill) {
			continue
		}

		atomic.StoreInt64(&b.tokens, newTokens)

		return
	}
}

// consume attempts to take one token.
func (b *RateLimitBucket) consume() bool {
	for {
		currentTokens := atomic.LoadInt64(&b.tokens)
		if currentTokens <= 0 {
			return false
		}

		if atomic.CompareAndSwapInt64(&b.tokens, currentTokens, currentTokens-1) {
			return true
		}
	}
}

// waitTime returns the computed duration until the next token is expected.
func (b *RateLimitBucket) waitTime() time.Duration {
	if b.refillRate <= 0 {
		return 0
	}

	lastRefill := atomic.LoadInt64(&b.lastRefill)
	next := lastRefill + int64(b.refillRate)

	wait := time.Duration(next - time.Now().UnixNano())
	if wait < 0 {
		// A token should already be available; nudge forward to avoid a
		// busy spin when contending callers drain refills immediately.
		wait = time.Millisecond
	}

	return wait
}

// Tokens returns the current token count, for introspection and tests.
func (b *RateLimitBucket) Tokens() int64 {
	b.refill()

	return atomic.LoadInt64(&b.tokens)
}

// RateLimiter throttles outbound requests across named quota scopes. A
// request proceeds only once every relevant scope has granted a permit;
// denial of any scope blocks the caller for the computed wait time.
//
// Consumed permits are never returned: a caller that is cancelled after
// acquisition simply abandons its tokens.
type RateLimiter struct {
	mu      sync.RWMutex
	buckets map[string]*RateLimitBucket
}

// NewRateLimiter creates a rate limiter with no scopes registered.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*RateLimitBucket),
	}
}

// AddScope registers a quota scope. Re-registering a scope replaces its
// bucket.
func (rl *RateLimiter) AddScope(scope string, capacity int, refillRate time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.buckets[scope] = NewRateLimitBucket(capacity, refillRate)
}

// bucket returns the bucket for scope, nil when the scope is unknown.
// Unknown scopes are treated as unlimited.
func (rl *RateLimiter) bucket(scope string) *RateLimitBucket {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	return rl.buckets[scope]
}

// Acquire blocks until every listed scope grants a permit, or the context
// is done. The wait per denial is computed from the bucket's refill rate,
// not polled.
func (rl *RateLimiter) Acquire(ctx context.Context, scopes ...string) error {
	for _, scope := range scopes {
		bucket := rl.bucket(scope)
		if bucket == nil {
			continue
		}

		for {
			if bucket.Allow() {
				break
			}

			wait := bucket.waitTime()

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()

				return fmt.Errorf("rate limit wait on scope %q: %w", scope, ctx.Err())
			case <-timer.C:
			}
		}
	}

	return nil
}
