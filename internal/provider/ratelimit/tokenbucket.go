package ratelimit

import (
    "context"
    "fmt"
    "sync"
    "time"

    "stockproxy/internal/provider"
)

// ErrLimited is returned when a call would have to wait longer than allowed.
var ErrLimited = fmt.Errorf("%w: local budget exhausted", provider.ErrRateLimited)

// TokenBucket is a token bucket limiter shared by every request to one provider.
// - rate: tokens per second
// - capacity: maximum tokens the bucket can hold (burst)
type TokenBucket struct {
    rate     float64
    capacity float64

    mu     sync.Mutex
    tokens float64
    last   time.Time
}

func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
    if tokensPerSecond <= 0 { tokensPerSecond = 0.0000001 }
    if burst <= 0 { burst = 1 }
    return &TokenBucket{
        rate:     tokensPerSecond,
        capacity: float64(burst),
        tokens:   float64(burst), // start full
        last:     time.Now(),
    }
}

// refill must be called with mu held.
func (tb *TokenBucket) refill(now time.Time) {
    if elapsed := now.Sub(tb.last).Seconds(); elapsed > 0 {
        tb.tokens += elapsed * tb.rate
        if tb.tokens > tb.capacity {
            tb.tokens = tb.capacity
        }
        tb.last = now
    }
}

// take consumes a token if one is available, otherwise it reports how long
// until one will be.
func (tb *TokenBucket) take() (time.Duration, bool) {
    tb.mu.Lock()
    defer tb.mu.Unlock()
    tb.refill(time.Now())
    if tb.tokens >= 1 {
        tb.tokens--
        return 0, true
    }
    d := time.Duration((1 - tb.tokens) / tb.rate * float64(time.Second))
    if d <= 0 { d = time.Millisecond }
    return d, false
}

// Wait blocks until one token is available or ctx is canceled.
// With maxWait > 0 it gives up with ErrLimited instead of sleeping longer.
func (tb *TokenBucket) Wait(ctx context.Context, maxWait time.Duration) error {
    for {
        d, ok := tb.take()
        if ok {
            return nil
        }
        if maxWait > 0 && d > maxWait {
            return ErrLimited
        }
        timer := time.NewTimer(d)
        select {
        case <-ctx.Done():
            timer.Stop()
            return ctx.Err()
        case <-timer.C:
        }
    }
}

// TokenBucketProvider wraps a Provider and gates calls using a token bucket.
type TokenBucketProvider struct {
    P  provider.Provider
    TB *TokenBucket
    // MaxWait caps how long a single call may queue; 0 waits for the context.
    MaxWait time.Duration
}

func (t *TokenBucketProvider) Name() string { return t.P.Name() }

func (t *TokenBucketProvider) Quote(ctx context.Context, req provider.Request) (provider.Quote, error) {
    if t.TB != nil {
        if err := t.TB.Wait(ctx, t.MaxWait); err != nil { return provider.Quote{}, err }
    }
    return t.P.Quote(ctx, req)
}
