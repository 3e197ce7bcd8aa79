// Package search queries the stock symbol index on Algolia.
package search

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/url"
    "strings"

    "github.com/algolia/algoliasearch-client-go/v4/algolia/call"
    algolia "github.com/algolia/algoliasearch-client-go/v4/algolia/search"
    "github.com/algolia/algoliasearch-client-go/v4/algolia/transport"
)

var ErrNotConfigured = errors.New("search: index not configured")

type Config struct {
    AppID  string
    APIKey string
    Index  string
    // BaseURL replaces the Algolia hosts derived from AppID, e.g. a test server.
    BaseURL     string
    HitsPerPage int
}

// Hit is one search result.
type Hit struct {
    ObjectID string `json:"objectID"`
    Symbol   string `json:"symbol"`
    Name     string `json:"name"`
    Exchange string `json:"exchange"`
    Type     string `json:"type,omitempty"`
}

type Client struct {
    cfg Config
    api *algolia.APIClient
    // err is the reason api is nil when credentials were given.
    err error
}

func New(cfg Config) *Client {
    if cfg.Index == "" { cfg.Index = "stock_name_types" }
    if cfg.HitsPerPage <= 0 { cfg.HitsPerPage = 10 }
    c := &Client{cfg: cfg}
    if cfg.AppID == "" || cfg.APIKey == "" {
        return c
    }

    conf := algolia.SearchConfiguration{
        Configuration: transport.Configuration{
            AppID:  cfg.AppID,
            ApiKey: cfg.APIKey,
        },
    }
    if cfg.BaseURL != "" {
        u, err := url.Parse(cfg.BaseURL)
        if err != nil || u.Host == "" {
            c.err = fmt.Errorf("search: invalid base URL %q", cfg.BaseURL)
            return c
        }
        conf.Hosts = []transport.StatefulHost{transport.NewStatefulHost(u.Scheme, u.Host, call.IsReadWrite)}
    }
    c.api, c.err = algolia.NewClientWithConfig(conf)
    return c
}

// Enabled reports whether the client has enough configuration to query.
func (c *Client) Enabled() bool { return c.api != nil }

// Search returns the hits for query. A blank query returns no hits without
// calling the index.
func (c *Client) Search(ctx context.Context, query string) ([]Hit, error) {
    query = strings.TrimSpace(query)
    if query == "" {
        return []Hit{}, nil
    }
    if c.api == nil {
        if c.err != nil { return nil, c.err }
        return nil, ErrNotConfigured
    }

    params := algolia.NewEmptySearchParamsObject().
        SetQuery(query).
        SetHitsPerPage(int32(c.cfg.HitsPerPage))
    resp, err := c.api.SearchSingleIndex(
        c.api.NewApiSearchSingleIndexRequest(c.cfg.Index).
            WithSearchParams(algolia.SearchParamsObjectAsSearchParams(params)),
        algolia.WithContext(ctx),
    )
    if err != nil {
        return nil, fmt.Errorf("search %q: %w", c.cfg.Index, err)
    }

    hits := make([]Hit, 0, len(resp.Hits))
    for _, h := range resp.Hits {
        hit, err := toHit(h)
        if err != nil {
            return nil, fmt.Errorf("search %q: %w", c.cfg.Index, err)
        }
        hits = append(hits, hit)
    }
    return hits, nil
}

// toHit maps an index record onto Hit. Record attributes other than objectID
// live in the SDK hit's additional properties, which its JSON form merges back.
func toHit(h algolia.Hit) (Hit, error) {
    b, err := json.Marshal(h)
    if err != nil {
        return Hit{}, err
    }
    var out Hit
    if err := json.Unmarshal(b, &out); err != nil {
        return Hit{}, err
    }
    if out.ObjectID == "" { out.ObjectID = h.ObjectID }
    return out, nil
}
