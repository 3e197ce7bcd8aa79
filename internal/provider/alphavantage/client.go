package alphavantage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stockproxy/internal/httpx"
	"stockproxy/internal/provider"
)

// https://www.alphavantage.co/documentation/
const baseURL = "https://www.alphavantage.co"

// maxBody bounds a single response; GLOBAL_QUOTE answers are well under 1KB.
const maxBody = 64 << 10

// ErrMissingAPIKey is returned by NewClient when no key is given.
var ErrMissingAPIKey = errors.New("alphavantage: missing API key")

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=alphavantage_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the Alpha Vantage /query endpoint. Every call is a GET
// selected by the "function" parameter and authenticated by "apikey".
type Client struct {
	name       string
	baseURL    string
	httpClient HTTPClient
	header     http.Header
	// query is sent with every call: apikey, datatype and, for premium keys,
	// entitlement.
	query url.Values
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds each call. It installs a dedicated http.Client, so it
// should not be combined with WithHTTPClient.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithHeader adds headers sent with each call.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// WithEntitlement requests "realtime" or "delayed" US market data. Only
// premium keys carry an entitlement; free keys get end-of-day values.
func WithEntitlement(entitlement string) ClientOption {
	return func(c *Client) {
		if entitlement != "" {
			c.query.Set("entitlement", entitlement)
		}
	}
}

// WithName overrides the provider name.
func WithName(name string) ClientOption {
	return func(c *Client) {
		if name != "" {
			c.name = name
		}
	}
}

// NewClient creates a client authenticated with key.
func NewClient(key string, options ...ClientOption) (*Client, error) {
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	var client = &Client{
		name:       "AlphaVantage",
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
		query:      url.Values{},
	}
	client.query.Set("apikey", key)
	client.query.Set("datatype", "json")
	for _, option := range options {
		option(client)
	}
	return client, nil
}

// Name implements provider.Provider.
func (c *Client) Name() string { return c.name }

// call runs function with params and returns the body of a 200 answer.
// Alpha Vantage reports most failures (bad symbol, throttling notes) inside a
// 200 body, so only transport-level statuses are mapped here.
func (c *Client) call(ctx context.Context, function string, params url.Values) ([]byte, error) {
	query := maps.Clone(c.query)
	query.Set("function", function)
	for k, vs := range params {
		query[k] = vs
	}

	endpoint := fmt.Sprintf("%s/query?%s", strings.TrimRight(c.baseURL, "/"), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		break

	case http.StatusForbidden, http.StatusUnauthorized:
		return nil, fmt.Errorf("unauthorized")

	case http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, fmt.Errorf("%w: upstream answered %d", provider.ErrRateLimited, res.StatusCode)

	default:
		return nil, fmt.Errorf("unexpected status code: %d: %s", res.StatusCode, httpx.Snippet(res.Body))
	}

	body, err := httpx.ReadLimited(res.Body, maxBody)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}
