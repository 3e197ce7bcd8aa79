package config

import (
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strconv"
    "strings"

    "gopkg.in/yaml.v3"
)

type Server struct {
    Port              string `json:"port" yaml:"port"`
    RequestTimeoutSec int    `json:"request_timeout_sec" yaml:"request_timeout_sec"`
    // WebhookTimeoutSec applies to analysis and chart calls, which wait on an LLM.
    WebhookTimeoutSec int    `json:"webhook_timeout_sec" yaml:"webhook_timeout_sec"`
    AllowedOrigin     string `json:"allowed_origin" yaml:"allowed_origin"`
}

// Limits is the per-provider rate limit block.
type Limits struct {
    MaxRequestsPerMinute  int `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
    MinRequestIntervalSec int `json:"min_request_interval_sec" yaml:"min_request_interval_sec"`
    Burst                 int `json:"burst" yaml:"burst"`
    MaxWaitSec            int `json:"max_wait_sec" yaml:"max_wait_sec"`
}

type AlphaVantage struct {
    Enabled bool   `json:"enabled" yaml:"enabled"`
    APIKey  string `json:"api_key" yaml:"api_key"`
    BaseURL string `json:"base_url" yaml:"base_url"`
    Limits  `yaml:",inline"`
}

type TwelveData struct {
    Enabled         bool   `json:"enabled" yaml:"enabled"`
    APIKey          string `json:"api_key" yaml:"api_key"`
    BaseURL         string `json:"base_url" yaml:"base_url"`
    DefaultInterval string `json:"default_interval" yaml:"default_interval"`
    OutputSize      int    `json:"output_size" yaml:"output_size"`
    Limits          `yaml:",inline"`
}

type Webhook struct {
    BaseURL       string   `json:"base_url" yaml:"base_url"`
    AnalysisPath  string   `json:"analysis_path" yaml:"analysis_path"`
    ChartPath     string   `json:"chart_path" yaml:"chart_path"`
    Theme         string   `json:"theme" yaml:"theme"`
    Studies       []string `json:"studies" yaml:"studies"`
    MaxChartBytes int64    `json:"max_chart_bytes" yaml:"max_chart_bytes"`
}

type Search struct {
    AppID       string `json:"app_id" yaml:"app_id"`
    APIKey      string `json:"api_key" yaml:"api_key"`
    Index       string `json:"index" yaml:"index"`
    BaseURL     string `json:"base_url" yaml:"base_url"`
    HitsPerPage int    `json:"hits_per_page" yaml:"hits_per_page"`
}

type Config struct {
    Server       Server       `json:"server" yaml:"server"`
    AlphaVantage AlphaVantage `json:"alphavantage" yaml:"alphavantage"`
    TwelveData   TwelveData   `json:"twelvedata" yaml:"twelvedata"`
    Webhook      Webhook      `json:"webhook" yaml:"webhook"`
    Search       Search       `json:"search" yaml:"search"`
}

func Default() Config {
    return Config{
        Server: Server{Port: "3001", RequestTimeoutSec: 10, WebhookTimeoutSec: 120, AllowedOrigin: "*"},
        AlphaVantage: AlphaVantage{
            Enabled: true,
            BaseURL: "https://www.alphavantage.co",
            // free tier: 5 requests per minute
            Limits: Limits{MaxRequestsPerMinute: 5, Burst: 5, MaxWaitSec: 5},
        },
        TwelveData: TwelveData{
            Enabled:         true,
            BaseURL:         "https://api.twelvedata.com",
            DefaultInterval: "1day",
            OutputSize:      2,
            // free tier: 8 credits per minute
            Limits: Limits{MaxRequestsPerMinute: 8, Burst: 8, MaxWaitSec: 5},
        },
        Webhook: Webhook{
            BaseURL:       "http://localhost:5678",
            AnalysisPath:  "/webhook/stock-analysis",
            ChartPath:     "/webhook/chart",
            Theme:         "dark",
            Studies:       []string{"Bollinger Bands", "Volume", "Relative Strength Index"},
            MaxChartBytes: 10 << 20,
        },
        Search: Search{Index: "stock_name_types", HitsPerPage: 10},
    }
}

// Load reads a JSON or YAML config (by extension) from path. If path is empty,
// config.json then config.yaml in the working directory are tried, falling back
// to defaults. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
    cfg := Default()
    if path == "" {
        for _, p := range []string{"config.json", "config.yaml", "config.yml"} {
            if _, err := os.Stat(p); err == nil {
                path = p
                break
            }
        }
    }
    if path != "" {
        b, err := os.ReadFile(path)
        if err != nil && !errors.Is(err, os.ErrNotExist) {
            return cfg, fmt.Errorf("read config: %w", err)
        }
        if err == nil {
            if err := decode(path, b, &cfg); err != nil {
                return cfg, fmt.Errorf("parse config: %w", err)
            }
        }
    }
    applyEnv(&cfg, os.Getenv)
    return cfg, nil
}

func decode(path string, b []byte, cfg *Config) error {
    switch strings.ToLower(filepath.Ext(path)) {
    case ".yaml", ".yml":
        return yaml.Unmarshal(b, cfg)
    default:
        return json.Unmarshal(b, cfg)
    }
}

// Validate reports settings the server cannot start with. Missing API keys
// are not errors: the affected provider is disabled with a warning.
func (c Config) Validate() error {
    var errs []error
    if _, err := strconv.Atoi(c.Server.Port); err != nil {
        errs = append(errs, fmt.Errorf("server.port %q is not a number", c.Server.Port))
    }
    if c.Server.RequestTimeoutSec <= 0 {
        errs = append(errs, errors.New("server.request_timeout_sec must be positive"))
    }
    if c.Server.WebhookTimeoutSec <= 0 {
        errs = append(errs, errors.New("server.webhook_timeout_sec must be positive"))
    }
    if c.Webhook.BaseURL == "" {
        errs = append(errs, errors.New("webhook.base_url is required"))
    }
    return errors.Join(errs...)
}

func applyEnv(cfg *Config, getenv func(string) string) {
    str := func(key string, dst *string) {
        if v := getenv(key); v != "" { *dst = v }
    }
    num := func(key string, dst *int, min int) {
        if v := getenv(key); v != "" {
            if x, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && x >= min { *dst = x }
        }
    }
    flag := func(key string, dst *bool) {
        switch strings.ToLower(getenv(key)) {
        case "1", "true", "yes", "y": *dst = true
        case "0", "false", "no", "n": *dst = false
        }
    }
    limits := func(prefix string, l *Limits) {
        num(prefix+"_MAX_RPM", &l.MaxRequestsPerMinute, 0)
        num(prefix+"_MIN_INTERVAL_SEC", &l.MinRequestIntervalSec, 0)
        num(prefix+"_BURST", &l.Burst, 1)
        num(prefix+"_MAX_WAIT_SEC", &l.MaxWaitSec, 0)
    }

    str("PORT", &cfg.Server.Port)
    num("REQUEST_TIMEOUT_SEC", &cfg.Server.RequestTimeoutSec, 1)
    num("WEBHOOK_TIMEOUT_SEC", &cfg.Server.WebhookTimeoutSec, 1)
    str("ALLOWED_ORIGIN", &cfg.Server.AllowedOrigin)

    str("AV_API_KEY", &cfg.AlphaVantage.APIKey)
    str("ALPHAVANTAGE_API_KEY", &cfg.AlphaVantage.APIKey)
    str("ALPHAVANTAGE_BASE_URL", &cfg.AlphaVantage.BaseURL)
    flag("ALPHAVANTAGE_ENABLED", &cfg.AlphaVantage.Enabled)
    limits("ALPHAVANTAGE", &cfg.AlphaVantage.Limits)

    str("TWELVEDATA_API_KEY", &cfg.TwelveData.APIKey)
    str("TWELVEDATA_BASE_URL", &cfg.TwelveData.BaseURL)
    str("TWELVEDATA_INTERVAL", &cfg.TwelveData.DefaultInterval)
    num("TWELVEDATA_OUTPUT_SIZE", &cfg.TwelveData.OutputSize, 1)
    flag("TWELVEDATA_ENABLED", &cfg.TwelveData.Enabled)
    limits("TWELVEDATA", &cfg.TwelveData.Limits)

    str("N8N_BASE_URL", &cfg.Webhook.BaseURL)
    str("WEBHOOK_BASE_URL", &cfg.Webhook.BaseURL)
    str("WEBHOOK_ANALYSIS_PATH", &cfg.Webhook.AnalysisPath)
    str("WEBHOOK_CHART_PATH", &cfg.Webhook.ChartPath)
    if v := getenv("WEBHOOK_STUDIES"); v != "" { cfg.Webhook.Studies = splitCSV(v) }

    str("ALGOLIA_APP_ID", &cfg.Search.AppID)
    str("ALGOLIA_API_KEY", &cfg.Search.APIKey)
    str("SEARCH_INDEX", &cfg.Search.Index)
    str("SEARCH_BASE_URL", &cfg.Search.BaseURL)
    num("SEARCH_HITS_PER_PAGE", &cfg.Search.HitsPerPage, 1)
}

func splitCSV(s string) []string {
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts {
        p = strings.TrimSpace(p)
        if p != "" { out = append(out, p) }
    }
    return out
}
