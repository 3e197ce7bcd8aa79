// Package webhook forwards analysis and chart requests to the workflow
// automation service (n8n) and relays what it returns.
package webhook

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"

    "stockproxy/internal/httpx"
)

type Config struct {
    BaseURL      string
    AnalysisPath string
    ChartPath    string
    // Theme and Studies shape the chart request.
    Theme   string
    Studies []string
    // MaxChartBytes bounds the relayed image.
    MaxChartBytes int64
}

const maxAnalysisBytes = 1 << 20

var (
    ErrMissingSymbol = errors.New("missing symbol")
    // ErrInvalidChartParams is returned for a blank or oversize symbol or a blank exchange.
    ErrInvalidChartParams = errors.New("invalid chart parameters")
)

// StatusError is a non-2xx webhook answer. Code is relayed to the caller.
type StatusError struct {
    Code int
    Body string
}

func (e *StatusError) Error() string { return fmt.Sprintf("webhook -> %d: %s", e.Code, e.Body) }

type Client struct {
    cfg  Config
    http *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Client {
    if cfg.BaseURL == "" { cfg.BaseURL = "http://localhost:5678" }
    if cfg.AnalysisPath == "" { cfg.AnalysisPath = "/webhook/stock-analysis" }
    if cfg.ChartPath == "" { cfg.ChartPath = "/webhook/chart" }
    if cfg.Theme == "" { cfg.Theme = "dark" }
    if cfg.Studies == nil { cfg.Studies = []string{"Bollinger Bands", "Volume", "Relative Strength Index"} }
    if cfg.MaxChartBytes <= 0 { cfg.MaxChartBytes = 10 << 20 }
    return &Client{cfg: cfg, http: hc}
}

func (c *Client) url(path string) string {
    return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// Analyze posts body unchanged and returns the workflow's text answer.
func (c *Client) Analyze(ctx context.Context, body []byte) (string, error) {
    if len(body) == 0 { body = []byte("{}") }
    resp, err := c.http.PostJSON(ctx, c.url(c.cfg.AnalysisPath), body, nil)
    if err != nil { return "", fmt.Errorf("analysis webhook: %w", err) }
    defer resp.Body.Close()
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        return "", &StatusError{Code: resp.StatusCode, Body: httpx.Snippet(resp.Body)}
    }
    b, err := httpx.ReadLimited(resp.Body, maxAnalysisBytes)
    if err != nil { return "", fmt.Errorf("analysis webhook: %w", err) }
    return string(b), nil
}

// AnalyzeSymbol is Analyze with a {"symbol": ...} body.
func (c *Client) AnalyzeSymbol(ctx context.Context, symbol string) (string, error) {
    symbol = strings.ToUpper(strings.TrimSpace(symbol))
    if symbol == "" { return "", ErrMissingSymbol }
    b, err := json.Marshal(map[string]string{"symbol": symbol})
    if err != nil { return "", err }
    return c.Analyze(ctx, b)
}

// Chart is a rendered chart relayed from the webhook.
type Chart struct {
    ContentType string
    Data        []byte
}

type study struct {
    Name string `json:"name"`
}

type chartRequest struct {
    Symbol  string  `json:"symbol"`
    Theme   string  `json:"theme"`
    Studies []study `json:"studies"`
}

// ValidateChartParams checks and normalizes a chart request.
func ValidateChartParams(symbol, exchange string) (string, string, error) {
    symbol = strings.ToUpper(strings.TrimSpace(symbol))
    exchange = strings.ToUpper(strings.TrimSpace(exchange))
    if symbol == "" || len(symbol) > 10 {
        return "", "", fmt.Errorf("%w: symbol %q", ErrInvalidChartParams, symbol)
    }
    if exchange == "" {
        return "", "", fmt.Errorf("%w: missing exchange", ErrInvalidChartParams)
    }
    return symbol, exchange, nil
}

// Chart requests a chart for EXCHANGE:SYMBOL.
func (c *Client) Chart(ctx context.Context, symbol, exchange string) (Chart, error) {
    symbol, exchange, err := ValidateChartParams(symbol, exchange)
    if err != nil { return Chart{}, err }

    req := chartRequest{Symbol: exchange + ":" + symbol, Theme: c.cfg.Theme}
    for _, s := range c.cfg.Studies {
        req.Studies = append(req.Studies, study{Name: s})
    }
    resp, err := c.http.PostJSON(ctx, c.url(c.cfg.ChartPath), req, nil)
    if err != nil { return Chart{}, fmt.Errorf("chart webhook: %w", err) }
    defer resp.Body.Close()
    if resp.StatusCode < 200 || resp.StatusCode >= 300 {
        return Chart{}, &StatusError{Code: resp.StatusCode, Body: httpx.Snippet(resp.Body)}
    }
    data, err := httpx.ReadLimited(resp.Body, c.cfg.MaxChartBytes)
    if err != nil { return Chart{}, fmt.Errorf("chart webhook: %w", err) }
    ct := resp.Header.Get("Content-Type")
    if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
        ct = http.DetectContentType(data)
        if ct == "application/octet-stream" { ct = "image/png" }
    }
    return Chart{ContentType: ct, Data: data}, nil
}
