package ratelimit

import (
    "context"
    "sync"
    "time"

    "stockproxy/internal/provider"
)

// MinInterval wraps a provider and enforces a minimum time between calls.
// Calls are serialized: each waits for the previous slot, or returns early
// if the context is canceled.
type MinInterval struct {
    P        provider.Provider
    Interval time.Duration

    mu   sync.Mutex
    next time.Time
}

func (m *MinInterval) Name() string { return m.P.Name() }

func (m *MinInterval) Quote(ctx context.Context, req provider.Request) (provider.Quote, error) {
    if err := m.reserve(ctx); err != nil {
        return provider.Quote{}, err
    }
    return m.P.Quote(ctx, req)
}

// reserve claims the next free slot and sleeps until it starts.
func (m *MinInterval) reserve(ctx context.Context) error {
    if m.Interval <= 0 {
        return nil
    }
    m.mu.Lock()
    now := time.Now()
    slot := m.next
    if slot.Before(now) {
        slot = now
    }
    m.next = slot.Add(m.Interval)
    m.mu.Unlock()

    wait := time.Until(slot)
    if wait <= 0 {
        return nil
    }
    t := time.NewTimer(wait)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-t.C:
        return nil
    }
}

// Limits describes the limiter for one provider.
type Limits struct {
    PerMinute   int
    Burst       int
    MinInterval time.Duration
    MaxWait     time.Duration
}

// Wrap applies a token bucket when PerMinute is set, otherwise a minimum
// interval, otherwise nothing.
func Wrap(p provider.Provider, l Limits) provider.Provider {
    switch {
    case l.PerMinute > 0:
        return &TokenBucketProvider{P: p, TB: NewTokenBucket(float64(l.PerMinute)/60.0, l.Burst), MaxWait: l.MaxWait}
    case l.MinInterval > 0:
        return &MinInterval{P: p, Interval: l.MinInterval}
    default:
        return p
    }
}
