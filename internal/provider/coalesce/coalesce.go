package coalesce

import (
    "context"
    "strings"
    "time"

    "golang.org/x/sync/singleflight"

    "stockproxy/internal/provider"
)

// Provider collapses concurrent identical requests into one upstream call.
// Nothing is kept once the call returns, so every request that arrives after
// it completes goes upstream again.
type Provider struct {
    P provider.Provider
    // Timeout bounds the shared call, which outlives any single caller's
    // cancellation. Zero means no extra bound.
    Timeout time.Duration

    sf singleflight.Group
}

func (c *Provider) Name() string { return c.P.Name() }

func key(req provider.Request) string {
    return strings.ToUpper(strings.TrimSpace(req.Symbol)) + "|" + strings.TrimSpace(req.Interval)
}

// Quote joins an in-flight call for the same symbol and interval, or starts one.
func (c *Provider) Quote(ctx context.Context, req provider.Request) (provider.Quote, error) {
    ch := c.sf.DoChan(key(req), func() (any, error) {
        sctx := context.WithoutCancel(ctx)
        if c.Timeout > 0 {
            var cancel context.CancelFunc
            sctx, cancel = context.WithTimeout(sctx, c.Timeout)
            defer cancel()
        }
        return c.P.Quote(sctx, req)
    })
    select {
    case <-ctx.Done():
        return provider.Quote{}, ctx.Err()
    case res := <-ch:
        if res.Err != nil {
            return provider.Quote{}, res.Err
        }
        return res.Val.(provider.Quote), nil
    }
}
