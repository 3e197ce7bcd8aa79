package main

import (
    "compress/gzip"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/google/go-cmp/cmp"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "stockproxy/internal/httpx"
    "stockproxy/internal/provider"
    "stockproxy/internal/provider/ratelimit"
    "stockproxy/internal/search"
    "stockproxy/internal/webhook"
)

type fakeProvider struct {
    quote provider.Quote
    err   error
    got   provider.Request
}

func (f *fakeProvider) Name() string { return "fake" }
func (f *fakeProvider) Quote(_ context.Context, req provider.Request) (provider.Quote, error) {
    f.got = req
    if f.err != nil { return provider.Quote{}, f.err }
    return f.quote, nil
}

func newServer(t *testing.T, av, td provider.Provider, hook http.HandlerFunc, idx http.HandlerFunc) http.Handler {
    t.Helper()
    s := &server{alphaVantage: av, twelveData: td, timeout: 2 * time.Second, webhookTimeout: 2 * time.Second}
    hc := httpx.New(2 * time.Second)
    if hook != nil {
        srv := httptest.NewServer(hook)
        t.Cleanup(srv.Close)
        s.webhook = webhook.New(webhook.Config{BaseURL: srv.URL}, hc)
    } else {
        s.webhook = webhook.New(webhook.Config{BaseURL: "http://127.0.0.1:1"}, hc)
    }
    if idx != nil {
        srv := httptest.NewServer(idx)
        t.Cleanup(srv.Close)
        s.search = search.New(search.Config{AppID: "APP", APIKey: "key", BaseURL: srv.URL})
    } else {
        s.search = search.New(search.Config{})
    }
    return withCORS("*", withGzip(recoverPanic(limitBody(s.routes()))))
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
    t.Helper()
    var r io.Reader
    if body != "" { r = strings.NewReader(body) }
    req := httptest.NewRequest(method, target, r)
    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, req)
    return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
    t.Helper()
    require.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
    var e errorResponse
    require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e), rr.Body.String())
    return e
}

func TestHealthz(t *testing.T) {
    rr := do(t, newServer(t, nil, nil, nil, nil), http.MethodGet, "/healthz", "")
    require.Equal(t, http.StatusOK, rr.Code)
    require.Equal(t, "ok", rr.Body.String())
}

func TestPrice_OK(t *testing.T) {
    want := provider.Quote{Symbol: "IBM", Price: "180.1000", Change: "1.1000", Percent: "0.6145%"}
    av := &fakeProvider{quote: want}
    rr := do(t, newServer(t, av, nil, nil, nil), http.MethodGet, "/api/price/ibm", "")
    require.Equal(t, http.StatusOK, rr.Code)
    require.Equal(t, "ibm", av.got.Symbol)

    var got provider.Quote
    require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
    if diff := cmp.Diff(want, got); diff != "" {
        t.Fatalf("quote mismatch (-want +got):\n%s", diff)
    }
    require.NotContains(t, rr.Body.String(), "interval")
}

func TestPriceTwelve_PassesInterval(t *testing.T) {
    td := &fakeProvider{quote: provider.Quote{Symbol: "AAPL", Change: "5.00", Percent: "3.45%", Interval: "1h"}}
    rr := do(t, newServer(t, nil, td, nil, nil), http.MethodGet, "/api/price-twelve?symbol=AAPL&interval=1h", "")
    require.Equal(t, http.StatusOK, rr.Code)
    require.Equal(t, provider.Request{Symbol: "AAPL", Interval: "1h"}, td.got)
    require.Contains(t, rr.Body.String(), `"percent":"3.45%"`)
}

func TestPrice_ErrorMapping(t *testing.T) {
    cases := []struct {
        name   string
        err    error
        status int
        msg    string
        detail string
    }{
        {"not found", &provider.NotFoundError{Symbol: "ZZZZ", Detail: "Thank you for using Alpha Vantage!"}, http.StatusNotFound, "Symbol not found or invalid", "Thank you for using Alpha Vantage!"},
        {"provider", &provider.ProviderError{Code: 400, Message: "**symbol** not found"}, http.StatusBadRequest, "**symbol** not found", ""},
        {"parse", &provider.ParseError{Field: "close", Value: "abc", Err: errors.New("bad")}, http.StatusBadGateway, "Malformed upstream response", `parse close "abc": bad`},
        {"missing symbol", provider.ErrMissingSymbol, http.StatusBadRequest, "Symbol is required", ""},
        {"interval", provider.ErrInvalidInterval, http.StatusBadRequest, "Invalid parameters", "invalid interval"},
        {"limited locally", ratelimit.ErrLimited, http.StatusTooManyRequests, "Rate limit exceeded, try again later", ""},
        {"limited upstream", fmt.Errorf("%w: upstream answered 429", provider.ErrRateLimited), http.StatusTooManyRequests, "Rate limit exceeded, try again later", ""},
        {"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "Upstream request timed out", ""},
        {"transport", errors.New("performing request: connection refused"), http.StatusBadGateway, "Upstream request failed", "performing request: connection refused"},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            rr := do(t, newServer(t, &fakeProvider{err: tc.err}, nil, nil, nil), http.MethodGet, "/api/price/ZZZZ", "")
            require.Equal(t, tc.status, rr.Code)
            require.Equal(t, errorResponse{Error: tc.msg, Detail: tc.detail}, decodeError(t, rr))
        })
    }
}

func TestPrice_ProviderDisabled(t *testing.T) {
    h := newServer(t, nil, nil, nil, nil)
    rr := do(t, h, http.MethodGet, "/api/price/IBM", "")
    require.Equal(t, http.StatusServiceUnavailable, rr.Code)
    rr = do(t, h, http.MethodGet, "/api/price-twelve?symbol=IBM", "")
    require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestStockAnalysis_ReturnsJSONString(t *testing.T) {
    hook := func(w http.ResponseWriter, r *http.Request) {
        b, _ := io.ReadAll(r.Body)
        assert.JSONEq(t, `{"symbol":"AAPL","timeframe":"1d"}`, string(b))
        _, _ = w.Write([]byte("AAPL looks \"strong\"\n"))
    }
    rr := do(t, newServer(t, nil, nil, hook, nil), http.MethodPost, "/api/stock-analysis", `{"symbol":"AAPL","timeframe":"1d"}`)
    require.Equal(t, http.StatusOK, rr.Code)
    var got string
    require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
    require.Equal(t, "AAPL looks \"strong\"\n", got)
}

func TestStockAnalysis_InvalidJSON(t *testing.T) {
    rr := do(t, newServer(t, nil, nil, nil, nil), http.MethodPost, "/api/stock-analysis", `{nope`)
    require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStockAnalysis_RelaysWebhookStatus(t *testing.T) {
    hook := func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusNotFound)
        _, _ = w.Write([]byte(`{"message":"webhook not registered"}`))
    }
    rr := do(t, newServer(t, nil, nil, hook, nil), http.MethodPost, "/api/stock-analysis", `{}`)
    require.Equal(t, http.StatusNotFound, rr.Code)
    e := decodeError(t, rr)
    require.Equal(t, "Webhook request failed", e.Error)
    require.Contains(t, e.Detail, "not registered")
}

func TestAnalyzeStock(t *testing.T) {
    hook := func(w http.ResponseWriter, r *http.Request) {
        _, _ = w.Write([]byte("Bullish."))
    }
    rr := do(t, newServer(t, nil, nil, hook, nil), http.MethodPost, "/mcp/analyzeStock", `{"symbol":"aapl"}`)
    require.Equal(t, http.StatusOK, rr.Code)
    var got analyzeResponse
    require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
    require.Equal(t, analyzeResponse{Symbol: "AAPL", Analysis: "Bullish.", Type: "text", Source: "webhook"}, got)

    rr = do(t, newServer(t, nil, nil, hook, nil), http.MethodPost, "/mcp/analyzeStock", `{"symbol":" "}`)
    require.Equal(t, http.StatusBadRequest, rr.Code)
    require.Equal(t, "Symbol is required", decodeError(t, rr).Error)
}

func TestChart(t *testing.T) {
    png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
    hook := func(w http.ResponseWriter, r *http.Request) {
        var m map[string]any
        assert.NoError(t, json.NewDecoder(r.Body).Decode(&m))
        assert.Equal(t, "NASDAQ:AAPL", m["symbol"])
        w.Header().Set("Content-Type", "image/png")
        _, _ = w.Write(png)
    }
    h := newServer(t, nil, nil, hook, nil)

    rr := do(t, h, http.MethodPost, "/api/chart?symbol=aapl&exchange=nasdaq", "")
    require.Equal(t, http.StatusOK, rr.Code)
    require.Equal(t, "image/png", rr.Header().Get("Content-Type"))
    require.Equal(t, png, rr.Body.Bytes())

    rr = do(t, h, http.MethodPost, "/api/chart", `{"symbol":"AAPL","exchange":"NASDAQ"}`)
    require.Equal(t, http.StatusOK, rr.Code)

    rr = do(t, h, http.MethodPost, "/api/chart?symbol=AAPL", "")
    require.Equal(t, http.StatusBadRequest, rr.Code)
    require.Equal(t, "Invalid parameters", decodeError(t, rr).Error)
}

func TestChart_BadBody(t *testing.T) {
    hook := func(w http.ResponseWriter, r *http.Request) {
        t.Error("webhook must not be called for a bad body")
    }
    h := newServer(t, nil, nil, hook, nil)

    rr := do(t, h, http.MethodPost, "/api/chart", `{"symbol":`)
    require.Equal(t, http.StatusBadRequest, rr.Code)
    require.Equal(t, "Invalid JSON body", decodeError(t, rr).Error)

    big := `{"symbol":"AAPL","exchange":"` + strings.Repeat("X", maxRequestBody) + `"}`
    rr = do(t, h, http.MethodPost, "/api/chart", big)
    require.Equal(t, http.StatusBadRequest, rr.Code)
    require.Equal(t, "Invalid request body", decodeError(t, rr).Error)
}

func TestSearchStocks(t *testing.T) {
    idx := func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json")
        _, _ = w.Write([]byte(`{"hits":[{"objectID":"1","symbol":"AAPL","name":"Apple Inc","exchange":"NASDAQ"}],
            "nbHits":1,"page":0,"nbPages":1,"hitsPerPage":10,"exhaustiveNbHits":true,"processingTimeMS":1,"query":"apple","params":""}`))
    }
    rr := do(t, newServer(t, nil, nil, nil, idx), http.MethodPost, "/mcp/searchStocks", `{"query":"apple"}`)
    require.Equal(t, http.StatusOK, rr.Code)
    var got searchResponse
    require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
    require.Equal(t, []search.Hit{{ObjectID: "1", Symbol: "AAPL", Name: "Apple Inc", Exchange: "NASDAQ"}}, got.Results)
}

func TestSearchStocks_Errors(t *testing.T) {
    h := newServer(t, nil, nil, nil, nil)
    rr := do(t, h, http.MethodPost, "/mcp/searchStocks", `{"query":""}`)
    require.Equal(t, http.StatusBadRequest, rr.Code)
    rr = do(t, h, http.MethodPost, "/mcp/searchStocks", `{"query":"apple"}`)
    require.Equal(t, http.StatusServiceUnavailable, rr.Code)
    rr = do(t, h, http.MethodPost, "/mcp/searchStocks", `[`)
    require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNotFoundIsJSON(t *testing.T) {
    rr := do(t, newServer(t, nil, nil, nil, nil), http.MethodGet, "/nope", "")
    require.Equal(t, http.StatusNotFound, rr.Code)
    require.Equal(t, "Not found", decodeError(t, rr).Error)
}

func TestMiddleware_CORSPreflight(t *testing.T) {
    rr := do(t, newServer(t, nil, nil, nil, nil), http.MethodOptions, "/api/price/IBM", "")
    require.Equal(t, http.StatusNoContent, rr.Code)
    require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestMiddleware_Gzip(t *testing.T) {
    h := newServer(t, &fakeProvider{quote: provider.Quote{Symbol: "IBM"}}, nil, nil, nil)
    req := httptest.NewRequest(http.MethodGet, "/api/price/IBM", nil)
    req.Header.Set("Accept-Encoding", "gzip")
    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, req)
    require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))

    zr, err := gzip.NewReader(rr.Body)
    require.NoError(t, err)
    b, err := io.ReadAll(zr)
    require.NoError(t, err)
    require.Contains(t, string(b), `"symbol":"IBM"`)
}

func TestMiddleware_RecoverPanic(t *testing.T) {
    h := recoverPanic(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }))
    rr := do(t, h, http.MethodGet, "/", "")
    require.Equal(t, http.StatusInternalServerError, rr.Code)
    require.Equal(t, "Internal server error", decodeError(t, rr).Error)
}

func TestMiddleware_LimitBody(t *testing.T) {
    big := `{"query":"` + strings.Repeat("a", maxRequestBody) + `"}`
    rr := do(t, newServer(t, nil, nil, nil, nil), http.MethodPost, "/mcp/searchStocks", big)
    require.Equal(t, http.StatusBadRequest, rr.Code)
}
