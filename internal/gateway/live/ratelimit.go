// Package live implements the gateway interfaces against a real
// exchange over REST and WebSocket. Grounded on the teacher's
// internal/exchanges/binance package (client.go's REST client and
// RateLimiter, websocket.go's reconnecting WebSocketManager),
// repointed from Binance's endpoints at a conventional futures/options
// exchange gateway per spec.md §4.H.
package live

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a continuously-refilling rate limiter: callers block
// in Wait() until a token is available or ctx is cancelled. Adapted
// from the teacher's internal/exchanges/binance RateLimiter, unchanged
// in algorithm.
type TokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64
	lastTime time.Time
}

func NewTokenBucket(capacity, ratePerSecond float64) *TokenBucket {
	return &TokenBucket{tokens: capacity, capacity: capacity, rate: ratePerSecond, lastTime: time.Now()}
}

func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.lastTime).Seconds()
		tb.tokens += elapsed * tb.rate
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastTime = now

		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}

		wait := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
		tb.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// RateLimiter groups the token buckets this gateway needs: order
// entry, cancellation, and market-data/reference-data queries each
// have their own exchange-side quota.
type RateLimiter struct {
	Order  *TokenBucket
	Cancel *TokenBucket
	Query  *TokenBucket
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		Order:  NewTokenBucket(100, 20),
		Cancel: NewTokenBucket(100, 20),
		Query:  NewTokenBucket(50, 10),
	}
}
