/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
    "context"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/pulseboard-io/pulseboard/internal/adapters/tracker"
    "github.com/pulseboard-io/pulseboard/internal/config"
    apihttp "github.com/pulseboard-io/pulseboard/internal/http"
    "github.com/pulseboard-io/pulseboard/internal/jobs"
    "github.com/pulseboard-io/pulseboard/internal/logger"
    "github.com/pulseboard-io/pulseboard/internal/repo"
    "github.com/pulseboard-io/pulseboard/internal/services"
)

func main() {
    cfg := config.Load()
    log := logger.New(cfg)
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // DB
    db := repo.MustOpen(ctx, cfg, log)
    defer db.Close()

    // Adapters
    tc := tracker.NewClient(tracker.Options{
        BaseURL:  cfg.TrackerBaseURL,
        Token:    cfg.TrackerToken,
        Timeout:  cfg.HTTPTimeout,
        Retries:  cfg.FetchRetries,
        PageSize: cfg.FetchPageSize,
    }, log)

    // Services
    repository := repo.NewRepository(db, log)
    svc := services.New(cfg, log, repository, tc)

    // Warm the cache so the first /api/analytics hit doesn't pay for a
    // full tracker fetch.
    go func() {
        ctx2, cancel2 := context.WithTimeout(ctx, 5*time.Minute); defer cancel2()
        if _, err := svc.RefreshSnapshot(ctx2); err != nil {
            log.Error().Err(err).Msg("initial snapshot refresh failed")
        }
    }()

    // HTTP server (Gin)
    router := apihttp.NewRouter(cfg, log, svc)

    // Cron
    cron := jobs.NewCron(cfg, log, svc, repository)
    cron.Start()
    defer cron.Stop()

    // graceful shutdown
    errCh := make(chan error, 1)
    go func() { errCh <- router.Run(cfg.HTTPAddr) }()

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

    select {
    case <-sigCh:
        log.Info().Msg("shutting down...")
    case err := <-errCh:
        if err != nil { log.Error().Err(err).Msg("http server error") }
    }

    time.Sleep(500 * time.Millisecond)
}
