package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "io"
    "log"
    "os"
    "strings"

    "github.com/google/subcommands"
    "golang.org/x/sync/errgroup"

    "stockproxy/internal/app"
    "stockproxy/internal/config"
    "stockproxy/internal/provider"
)

// as a short lived CLI, global flags are fine.
var (
    configPath  = flag.String("config", os.Getenv("CONFIG_FILE"), "path to config.json or config.yaml (optional)")
    concurrency = flag.Int("concurrency", 4, "maximum concurrent upstream requests")
)

func loadApp() (*app.App, error) {
    cfg, err := config.Load(*configPath)
    if err != nil { return nil, err }
    return app.New(cfg), nil
}

// result is one line of output: a quote or the error that replaced it.
type result struct {
    Symbol string          `json:"symbol"`
    Quote  *provider.Quote `json:"quote,omitempty"`
    Error  string          `json:"error,omitempty"`
}

// fetchAll quotes every symbol with at most limit calls in flight. Results keep
// the input order; the returned count is the number of failures.
func fetchAll(ctx context.Context, p provider.Provider, symbols []string, interval string, limit int) ([]result, int) {
    if limit <= 0 { limit = 1 }
    out := make([]result, len(symbols))
    g, gctx := errgroup.WithContext(ctx)
    g.SetLimit(limit)
    for i, s := range symbols {
        g.Go(func() error {
            q, err := p.Quote(gctx, provider.Request{Symbol: s, Interval: interval})
            if err != nil {
                out[i] = result{Symbol: s, Error: err.Error()}
                return nil
            }
            out[i] = result{Symbol: s, Quote: &q}
            return nil
        })
    }
    _ = g.Wait()

    failed := 0
    for _, r := range out {
        if r.Error != "" {
            failed++
            log.Printf("[WARN] %s: %s", r.Symbol, r.Error)
        }
    }
    return out, failed
}

func printJSON(w io.Writer, v any) error {
    enc := json.NewEncoder(w)
    enc.SetEscapeHTML(false)
    enc.SetIndent("", "  ")
    return enc.Encode(v)
}

func runQuotes(ctx context.Context, p provider.Provider, name string, symbols []string, interval string) subcommands.ExitStatus {
    if p == nil {
        fmt.Fprintf(os.Stderr, "Error: %s is disabled, check its API key\n", name)
        return subcommands.ExitFailure
    }
    results, failed := fetchAll(ctx, p, symbols, interval, *concurrency)
    if err := printJSON(os.Stdout, results); err != nil {
        fmt.Fprintf(os.Stderr, "Error: %v\n", err)
        return subcommands.ExitFailure
    }
    if failed > 0 { return subcommands.ExitFailure }
    return subcommands.ExitSuccess
}

// quoteCmd implements the "quote" command.
type quoteCmd struct{}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "latest quote from Alpha Vantage" }
func (*quoteCmd) Usage() string {
    return `quote SYMBOL...

Fetches the latest GLOBAL_QUOTE for each symbol and prints the normalized quotes.
`
}
func (*quoteCmd) SetFlags(*flag.FlagSet) {}

func (*quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
    if f.NArg() == 0 {
        f.Usage()
        return subcommands.ExitUsageError
    }
    a, err := loadApp()
    if err != nil {
        fmt.Fprintf(os.Stderr, "Error: config: %v\n", err)
        return subcommands.ExitFailure
    }
    return runQuotes(ctx, a.AlphaVantage, "alphavantage", f.Args(), "")
}

// seriesCmd implements the "series" command.
type seriesCmd struct {
    interval string
}

func (*seriesCmd) Name() string     { return "series" }
func (*seriesCmd) Synopsis() string { return "quote derived from the Twelve Data time series" }
func (*seriesCmd) Usage() string {
    return `series [-interval 1day] SYMBOL...

Fetches the two newest bars for each symbol and prints the quote derived from them.
`
}

func (c *seriesCmd) SetFlags(f *flag.FlagSet) {
    f.StringVar(&c.interval, "interval", "", "bar interval, e.g. 1min, 1h, 1day (default from config)")
}

func (c *seriesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
    if f.NArg() == 0 {
        f.Usage()
        return subcommands.ExitUsageError
    }
    a, err := loadApp()
    if err != nil {
        fmt.Fprintf(os.Stderr, "Error: config: %v\n", err)
        return subcommands.ExitFailure
    }
    return runQuotes(ctx, a.TwelveData, "twelvedata", f.Args(), c.interval)
}

// searchCmd implements the "search" command.
type searchCmd struct{}

func (*searchCmd) Name() string     { return "search" }
func (*searchCmd) Synopsis() string { return "search the symbol index" }
func (*searchCmd) Usage() string {
    return `search QUERY...

Searches the symbol index; all arguments are joined into one query.
`
}
func (*searchCmd) SetFlags(*flag.FlagSet) {}

func (*searchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
    query := strings.Join(f.Args(), " ")
    if strings.TrimSpace(query) == "" {
        f.Usage()
        return subcommands.ExitUsageError
    }
    a, err := loadApp()
    if err != nil {
        fmt.Fprintf(os.Stderr, "Error: config: %v\n", err)
        return subcommands.ExitFailure
    }
    if !a.Search.Enabled() {
        fmt.Fprintln(os.Stderr, "Error: search is disabled, set ALGOLIA_APP_ID and ALGOLIA_API_KEY")
        return subcommands.ExitFailure
    }
    hits, err := a.Search.Search(ctx, query)
    if err != nil {
        fmt.Fprintf(os.Stderr, "Error: %v\n", err)
        return subcommands.ExitFailure
    }
    if err := printJSON(os.Stdout, hits); err != nil {
        fmt.Fprintf(os.Stderr, "Error: %v\n", err)
        return subcommands.ExitFailure
    }
    return subcommands.ExitSuccess
}
