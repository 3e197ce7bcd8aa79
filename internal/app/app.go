// Package app builds the provider and webhook clients from configuration.
package app

import (
    "log"
    "net/http"
    "time"

    "stockproxy/internal/config"
    "stockproxy/internal/httpx"
    "stockproxy/internal/provider"
    "stockproxy/internal/provider/alphavantage"
    "stockproxy/internal/provider/coalesce"
    "stockproxy/internal/provider/ratelimit"
    "stockproxy/internal/provider/twelvedata"
    "stockproxy/internal/search"
    "stockproxy/internal/webhook"
)

// App holds the clients shared by all requests. A nil provider is disabled.
type App struct {
    AlphaVantage provider.Provider
    TwelveData   provider.Provider
    Webhook      *webhook.Client
    Search       *search.Client
}

func limits(l config.Limits) ratelimit.Limits {
    return ratelimit.Limits{
        PerMinute:   l.MaxRequestsPerMinute,
        Burst:       l.Burst,
        MinInterval: time.Duration(l.MinRequestIntervalSec) * time.Second,
        MaxWait:     time.Duration(l.MaxWaitSec) * time.Second,
    }
}

// wrap layers rate limiting under coalescing so joined callers spend one token.
func wrap(p provider.Provider, l config.Limits, timeout time.Duration) provider.Provider {
    return &coalesce.Provider{P: ratelimit.Wrap(p, limits(l)), Timeout: timeout}
}

func New(cfg config.Config) *App {
    timeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
    hc := httpx.New(timeout)

    a := &App{}
    if cfg.AlphaVantage.Enabled {
        av, err := alphavantage.NewClient(
            cfg.AlphaVantage.APIKey,
            alphavantage.WithBaseURL(cfg.AlphaVantage.BaseURL),
            alphavantage.WithHTTPClient(hc.HTTP),
            alphavantage.WithHeader(http.Header{
                "User-Agent": []string{httpx.UserAgent},
            }),
        )
        if err != nil {
            log.Printf("[WARN] alphavantage disabled: %v", err)
        } else {
            a.AlphaVantage = wrap(av, cfg.AlphaVantage.Limits, timeout)
        }
    }
    if cfg.TwelveData.Enabled {
        if cfg.TwelveData.APIKey == "" {
            log.Println("[WARN] twelvedata disabled: TWELVEDATA_API_KEY not set")
        } else {
            td := twelvedata.New(twelvedata.Config{
                BaseURL:         cfg.TwelveData.BaseURL,
                APIKey:          cfg.TwelveData.APIKey,
                DefaultInterval: cfg.TwelveData.DefaultInterval,
                OutputSize:      cfg.TwelveData.OutputSize,
            }, hc)
            a.TwelveData = wrap(td, cfg.TwelveData.Limits, timeout)
        }
    }

    // Analysis and charts wait on an LLM workflow, so they get their own timeout.
    whc := httpx.New(time.Duration(cfg.Server.WebhookTimeoutSec) * time.Second)
    a.Webhook = webhook.New(webhook.Config{
        BaseURL:       cfg.Webhook.BaseURL,
        AnalysisPath:  cfg.Webhook.AnalysisPath,
        ChartPath:     cfg.Webhook.ChartPath,
        Theme:         cfg.Webhook.Theme,
        Studies:       cfg.Webhook.Studies,
        MaxChartBytes: cfg.Webhook.MaxChartBytes,
    }, whc)

    a.Search = search.New(search.Config{
        AppID:       cfg.Search.AppID,
        APIKey:      cfg.Search.APIKey,
        Index:       cfg.Search.Index,
        BaseURL:     cfg.Search.BaseURL,
        HitsPerPage: cfg.Search.HitsPerPage,
    })
    if !a.Search.Enabled() {
        log.Println("[WARN] search disabled: ALGOLIA_APP_ID/ALGOLIA_API_KEY not set or invalid")
    }
    return a
}
