package httpx

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net"
    "net/http"
    "time"
)

// UserAgent is sent on every upstream request unless the caller set one.
const UserAgent = "stockproxy/1.0"

// Client is a small wrapper around http.Client with sane defaults.
type Client struct {
    HTTP      *http.Client
    UserAgent string
    Headers   map[string]string
}

func New(timeout time.Duration) *Client {
    transport := &http.Transport{
        Proxy: http.ProxyFromEnvironment,
        DialContext: (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
        MaxIdleConns:          50,
        MaxIdleConnsPerHost:   10,
        ForceAttemptHTTP2:     true,
        IdleConnTimeout:       90 * time.Second,
        TLSHandshakeTimeout:   3 * time.Second,
        ExpectContinueTimeout: 1 * time.Second,
        // webhook workflows run an LLM before answering
        ResponseHeaderTimeout: timeout,
    }
    return &Client{HTTP: &http.Client{Timeout: timeout, Transport: transport}, UserAgent: UserAgent}
}

func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
    req = req.WithContext(ctx)
    if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
        req.Header.Set("User-Agent", c.UserAgent)
    }
    for k, v := range c.Headers {
        if req.Header.Get(k) == "" {
            req.Header.Set(k, v)
        }
    }
    return c.HTTP.Do(req)
}

// PostJSON posts body (already encoded, or any value to encode) as JSON.
func (c *Client) PostJSON(ctx context.Context, url string, body any, headers map[string]string) (*http.Response, error) {
    var b []byte
    switch v := body.(type) {
    case []byte:
        b = v
    case json.RawMessage:
        b = v
    default:
        var err error
        if b, err = json.Marshal(v); err != nil {
            return nil, fmt.Errorf("encode body: %w", err)
        }
    }
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
    if err != nil {
        return nil, err
    }
    req.Header.Set("Content-Type", "application/json")
    for k, v := range headers {
        req.Header.Set(k, v)
    }
    return c.Do(ctx, req)
}

// ReadLimited reads at most limit bytes of a response body.
// A body longer than limit is an error rather than silently truncated.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
    b, err := io.ReadAll(io.LimitReader(r, limit+1))
    if err != nil {
        return nil, err
    }
    if int64(len(b)) > limit {
        return nil, fmt.Errorf("response body exceeds %d bytes", limit)
    }
    return b, nil
}

// Snippet returns up to 2KB of a body for error messages.
func Snippet(r io.Reader) string {
    b, _ := io.ReadAll(io.LimitReader(r, 2<<10))
    return string(bytes.TrimSpace(b))
}
