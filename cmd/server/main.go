package main

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "stockproxy/internal/app"
    "stockproxy/internal/config"
)

func main() {
    cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
    if err != nil { log.Fatalf("[ERROR] config: %v", err) }
    if err := cfg.Validate(); err != nil { log.Fatalf("[ERROR] config: %v", err) }

    a := app.New(cfg)
    s := &server{
        alphaVantage:   a.AlphaVantage,
        twelveData:     a.TwelveData,
        webhook:        a.Webhook,
        search:         a.Search,
        timeout:        time.Duration(cfg.Server.RequestTimeoutSec) * time.Second,
        webhookTimeout: time.Duration(cfg.Server.WebhookTimeoutSec) * time.Second,
    }

    srv := &http.Server{
        Addr:              ":" + cfg.Server.Port,
        Handler:           withCORS(cfg.Server.AllowedOrigin, withGzip(recoverPanic(limitBody(s.routes())))),
        ReadHeaderTimeout: 5 * time.Second,
        ReadTimeout:       15 * time.Second,
        // analysis and chart calls may take as long as the webhook timeout
        WriteTimeout: s.webhookTimeout + 10*time.Second,
        IdleTimeout:  60 * time.Second,
    }

    go func() {
        log.Printf("[INFO] server listening on :%s", cfg.Server.Port)
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            log.Fatalf("[ERROR] server: %v", err)
        }
    }()

    // graceful shutdown
    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()
    <-ctx.Done()
    log.Println("[INFO] shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    _ = srv.Shutdown(shutdownCtx)
}
