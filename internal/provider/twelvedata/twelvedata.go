package twelvedata

import (
    "bytes"
    "context"
    "fmt"
    "net/http"
    "net/url"
    "strconv"
    "strings"

    "stockproxy/internal/httpx"
    "stockproxy/internal/provider"
)

type Config struct {
    Name    string
    BaseURL string
    APIKey  string
    // DefaultInterval is used when a request carries none.
    DefaultInterval string
    // OutputSize is the number of bars requested; only the two newest are used.
    OutputSize int
}

// Intervals accepted by the time_series endpoint.
var Intervals = map[string]struct{}{
    "1min": {}, "5min": {}, "15min": {}, "30min": {}, "45min": {},
    "1h": {}, "2h": {}, "4h": {}, "8h": {},
    "1day": {}, "1week": {}, "1month": {},
}

const maxBody = 256 << 10

type Provider struct {
    cfg    Config
    client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
    if cfg.Name == "" { cfg.Name = "TwelveData" }
    if cfg.BaseURL == "" { cfg.BaseURL = "https://api.twelvedata.com" }
    if cfg.DefaultInterval == "" { cfg.DefaultInterval = "1day" }
    if cfg.OutputSize < 2 { cfg.OutputSize = 2 }
    return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

// TimeSeries fetches the raw series for symbol at interval.
func (p *Provider) TimeSeries(ctx context.Context, symbol, interval string) (provider.RawTimeSeries, error) {
    q := url.Values{}
    q.Set("symbol", symbol)
    q.Set("interval", interval)
    q.Set("outputsize", strconv.Itoa(p.cfg.OutputSize))
    if p.cfg.APIKey != "" { q.Set("apikey", p.cfg.APIKey) }

    u := strings.TrimRight(p.cfg.BaseURL, "/") + "/time_series?" + q.Encode()
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
    if err != nil { return provider.RawTimeSeries{}, err }
    resp, err := p.client.Do(ctx, req)
    if err != nil { return provider.RawTimeSeries{}, fmt.Errorf("time_series %s: %w", symbol, err) }
    defer resp.Body.Close()

    // The API reports most errors with HTTP 200 and status=error in the body;
    // a non-2xx status with a JSON error body is handled the same way.
    body, err := httpx.ReadLimited(resp.Body, maxBody)
    if err != nil { return provider.RawTimeSeries{}, fmt.Errorf("time_series %s: %w", symbol, err) }
    raw, err := provider.DecodeTimeSeries(bytes.NewReader(body))
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        if err == nil && strings.EqualFold(raw.Status, "error") {
            if raw.Code == 0 { raw.Code = resp.StatusCode }
            return raw, nil
        }
        return provider.RawTimeSeries{}, fmt.Errorf("GET time_series -> %d: %s", resp.StatusCode, bytes.TrimSpace(body))
    }
    return raw, err
}

// Quote implements provider.Provider.
func (p *Provider) Quote(ctx context.Context, req provider.Request) (provider.Quote, error) {
    symbol, err := provider.CleanSymbol(req.Symbol)
    if err != nil { return provider.Quote{}, err }
    interval := strings.TrimSpace(req.Interval)
    if interval == "" { interval = p.cfg.DefaultInterval }
    if _, ok := Intervals[interval]; !ok {
        return provider.Quote{}, fmt.Errorf("%w %q", provider.ErrInvalidInterval, interval)
    }

    raw, err := p.TimeSeries(ctx, symbol, interval)
    if err != nil { return provider.Quote{}, err }
    if raw.Meta.Symbol == "" { raw.Meta.Symbol = symbol }
    if raw.Meta.Interval == "" { raw.Meta.Interval = interval }
    return provider.NormalizeTimeSeries(raw)
}
