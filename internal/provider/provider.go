package provider

import (
    "context"
    "errors"
    "fmt"
    "strings"
)

// Quote is the normalized shape returned by all providers.
// Numeric fields stay strings so upstream precision survives untouched.
type Quote struct {
    Symbol        string `json:"symbol"`
    Open          string `json:"open"`
    High          string `json:"high"`
    Low           string `json:"low"`
    Price         string `json:"price"`
    Volume        string `json:"volume"`
    LatestDay     string `json:"latestDay"`
    PreviousClose string `json:"previousClose"`
    Change        string `json:"change"`
    Percent       string `json:"percent"`

    // Set only for time-series sources.
    Interval string `json:"interval,omitempty"`
    Currency string `json:"currency,omitempty"`
    Exchange string `json:"exchange,omitempty"`
    Timezone string `json:"timezone,omitempty"`
}

// Request identifies what to quote. Interval is ignored by providers
// that only serve the latest quote.
type Request struct {
    Symbol   string
    Interval string
}

type Provider interface {
    Name() string
    Quote(ctx context.Context, req Request) (Quote, error)
}

var (
    ErrMissingSymbol   = errors.New("missing symbol")
    ErrInvalidInterval = errors.New("invalid interval")
    // ErrRateLimited means the call was refused for rate, upstream or locally.
    ErrRateLimited = errors.New("rate limited")
)

// CleanSymbol trims and upper-cases a ticker.
func CleanSymbol(s string) (string, error) {
    s = strings.ToUpper(strings.TrimSpace(s))
    if s == "" {
        return "", ErrMissingSymbol
    }
    return s, nil
}

// NotFoundError means the upstream has no data for the symbol.
// Detail carries the vendor advisory when one was sent.
type NotFoundError struct {
    Symbol string
    Detail string
}

func (e *NotFoundError) Error() string {
    if e.Symbol == "" {
        return "not found: " + e.Detail
    }
    return fmt.Sprintf("%s not found: %s", e.Symbol, e.Detail)
}

// ProviderError is an explicit request-level error reported by the upstream.
type ProviderError struct {
    Code    int
    Message string
}

func (e *ProviderError) Error() string {
    if e.Code != 0 {
        return fmt.Sprintf("provider error: code=%d msg=%q", e.Code, e.Message)
    }
    return fmt.Sprintf("provider error: %q", e.Message)
}

// ParseError reports an upstream value that should have been numeric
// (or a body that is not the expected JSON).
type ParseError struct {
    Field string
    Value string
    Err   error
}

func (e *ParseError) Error() string {
    if e.Value == "" {
        return fmt.Sprintf("parse %s: %v", e.Field, e.Err)
    }
    return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
