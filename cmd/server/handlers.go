package main

import (
    "context"
    "encoding/json"
    "errors"
    "log"
    "net/http"
    "strings"
    "time"

    "stockproxy/internal/provider"
    "stockproxy/internal/search"
    "stockproxy/internal/webhook"
)

type server struct {
    alphaVantage provider.Provider
    twelveData   provider.Provider
    webhook      *webhook.Client
    search       *search.Client

    timeout        time.Duration
    webhookTimeout time.Duration
}

func (s *server) routes() *http.ServeMux {
    mux := http.NewServeMux()
    mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    })
    mux.HandleFunc("GET /api/price/{symbol}", s.handlePrice)
    mux.HandleFunc("GET /api/price-twelve", s.handlePriceTwelve)
    mux.HandleFunc("POST /api/stock-analysis", s.handleStockAnalysis)
    mux.HandleFunc("POST /api/chart", s.handleChart)
    mux.HandleFunc("POST /mcp/analyzeStock", s.handleAnalyzeStock)
    mux.HandleFunc("POST /mcp/searchStocks", s.handleSearchStocks)
    mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
        writeJSONError(w, http.StatusNotFound, "Not found", "")
    })
    return mux
}

type errorResponse struct {
    Error  string `json:"error"`
    Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json; charset=utf-8")
    w.WriteHeader(status)
    enc := json.NewEncoder(w)
    enc.SetEscapeHTML(false)
    _ = enc.Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg, detail string) {
    writeJSON(w, status, errorResponse{Error: msg, Detail: detail})
}

// writeError maps a provider or webhook error to its status and payload.
func writeError(w http.ResponseWriter, err error) {
    var (
        nf *provider.NotFoundError
        pe *provider.ProviderError
        pa *provider.ParseError
        se *webhook.StatusError
    )
    switch {
    case errors.As(err, &nf):
        writeJSONError(w, http.StatusNotFound, "Symbol not found or invalid", nf.Detail)
    case errors.As(err, &pe):
        writeJSONError(w, http.StatusBadRequest, pe.Message, "")
    case errors.As(err, &pa):
        log.Printf("[WARN] %v", err)
        writeJSONError(w, http.StatusBadGateway, "Malformed upstream response", pa.Error())
    case errors.As(err, &se):
        log.Printf("[WARN] %v", err)
        writeJSONError(w, se.Code, "Webhook request failed", se.Body)
    case errors.Is(err, provider.ErrMissingSymbol), errors.Is(err, webhook.ErrMissingSymbol):
        writeJSONError(w, http.StatusBadRequest, "Symbol is required", "")
    case errors.Is(err, provider.ErrInvalidInterval), errors.Is(err, webhook.ErrInvalidChartParams):
        writeJSONError(w, http.StatusBadRequest, "Invalid parameters", err.Error())
    case errors.Is(err, provider.ErrRateLimited):
        writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded, try again later", "")
    case errors.Is(err, context.DeadlineExceeded):
        log.Printf("[WARN] %v", err)
        writeJSONError(w, http.StatusGatewayTimeout, "Upstream request timed out", "")
    default:
        log.Printf("[ERROR] %v", err)
        writeJSONError(w, http.StatusBadGateway, "Upstream request failed", err.Error())
    }
}

func (s *server) quote(w http.ResponseWriter, r *http.Request, p provider.Provider, req provider.Request) {
    if p == nil {
        writeJSONError(w, http.StatusServiceUnavailable, "Provider not configured", "")
        return
    }
    ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
    defer cancel()
    q, err := p.Quote(ctx, req)
    if err != nil {
        writeError(w, err)
        return
    }
    writeJSON(w, http.StatusOK, q)
}

func (s *server) handlePrice(w http.ResponseWriter, r *http.Request) {
    s.quote(w, r, s.alphaVantage, provider.Request{Symbol: r.PathValue("symbol")})
}

func (s *server) handlePriceTwelve(w http.ResponseWriter, r *http.Request) {
    q := r.URL.Query()
    s.quote(w, r, s.twelveData, provider.Request{Symbol: q.Get("symbol"), Interval: q.Get("interval")})
}

func (s *server) webhookContext(r *http.Request) (context.Context, context.CancelFunc) {
    return context.WithTimeout(r.Context(), s.webhookTimeout)
}

// handleStockAnalysis forwards the body as is and answers with the analysis
// text encoded as a JSON string.
func (s *server) handleStockAnalysis(w http.ResponseWriter, r *http.Request) {
    body, err := readBody(r)
    if err != nil {
        writeJSONError(w, http.StatusBadRequest, "Invalid request body", err.Error())
        return
    }
    if len(body) > 0 && !json.Valid(body) {
        writeJSONError(w, http.StatusBadRequest, "Invalid JSON body", "")
        return
    }
    ctx, cancel := s.webhookContext(r)
    defer cancel()
    text, err := s.webhook.Analyze(ctx, body)
    if err != nil {
        writeError(w, err)
        return
    }
    writeJSON(w, http.StatusOK, text)
}

type analyzeRequest struct {
    Symbol string `json:"symbol"`
}

type analyzeResponse struct {
    Symbol   string `json:"symbol"`
    Analysis string `json:"analysis"`
    Type     string `json:"type"`
    Source   string `json:"source"`
}

func (s *server) handleAnalyzeStock(w http.ResponseWriter, r *http.Request) {
    var b analyzeRequest
    if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
        writeJSONError(w, http.StatusBadRequest, "Invalid JSON body", "")
        return
    }
    symbol := strings.ToUpper(strings.TrimSpace(b.Symbol))
    ctx, cancel := s.webhookContext(r)
    defer cancel()
    text, err := s.webhook.AnalyzeSymbol(ctx, symbol)
    if err != nil {
        writeError(w, err)
        return
    }
    writeJSON(w, http.StatusOK, analyzeResponse{Symbol: symbol, Analysis: text, Type: "text", Source: "webhook"})
}

type chartBody struct {
    Symbol   string `json:"symbol"`
    Exchange string `json:"exchange"`
}

// handleChart takes symbol and exchange from the query string, or from a JSON
// body when the query carries neither.
func (s *server) handleChart(w http.ResponseWriter, r *http.Request) {
    q := r.URL.Query()
    symbol, exchange := q.Get("symbol"), q.Get("exchange")
    if symbol == "" && exchange == "" {
        body, err := readBody(r)
        if err != nil {
            writeJSONError(w, http.StatusBadRequest, "Invalid request body", err.Error())
            return
        }
        var b chartBody
        if len(body) > 0 {
            if err := json.Unmarshal(body, &b); err != nil {
                writeJSONError(w, http.StatusBadRequest, "Invalid JSON body", "")
                return
            }
        }
        symbol, exchange = b.Symbol, b.Exchange
    }
    ctx, cancel := s.webhookContext(r)
    defer cancel()
    chart, err := s.webhook.Chart(ctx, symbol, exchange)
    if err != nil {
        writeError(w, err)
        return
    }
    w.Header().Set("Content-Type", chart.ContentType)
    w.Header().Set("Cache-Control", "no-store")
    w.WriteHeader(http.StatusOK)
    _, _ = w.Write(chart.Data)
}

type searchRequest struct {
    Query string `json:"query"`
}

type searchResponse struct {
    Results []search.Hit `json:"results"`
}

func (s *server) handleSearchStocks(w http.ResponseWriter, r *http.Request) {
    var b searchRequest
    if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
        writeJSONError(w, http.StatusBadRequest, "Invalid JSON body", "")
        return
    }
    if strings.TrimSpace(b.Query) == "" {
        writeJSONError(w, http.StatusBadRequest, "Query is required", "")
        return
    }
    if s.search == nil || !s.search.Enabled() {
        writeJSONError(w, http.StatusServiceUnavailable, "Search not configured", "")
        return
    }
    ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
    defer cancel()
    hits, err := s.search.Search(ctx, b.Query)
    if err != nil {
        writeError(w, err)
        return
    }
    writeJSON(w, http.StatusOK, searchResponse{Results: hits})
}
