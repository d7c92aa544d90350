/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "github.com/gin-gonic/gin"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "github.com/pulseboard-io/pulseboard/internal/analytics"
    "github.com/pulseboard-io/pulseboard/internal/config"
    "github.com/rs/zerolog"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc any) *gin.Engine {
    if cfg.AppEnv != "dev" { gin.SetMode(gin.ReleaseMode) }
    r := gin.New()
    r.Use(gin.Recovery())
    r.Use(func(c *gin.Context) {
        c.Next()
        log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Msg("http")
    })

    h := NewHandlers(cfg, log, svc)

    r.GET("/healthz", h.Healthz)
    r.GET("/metrics", gin.WrapH(promhttp.Handler()))

    api := r.Group("/api")
    api.GET("/analytics", h.Result)
    api.POST("/refresh", h.Refresh)
    api.GET("/analytics/velocity", h.section(func(r *analytics.Result) any {
        return gin.H{"velocity": r.Sprints, "avgVelocity": r.AvgVelocity, "trend": r.Trend, "currentSprint": r.CurrentSprint}
    }))
    api.GET("/analytics/burndown", h.section(func(r *analytics.Result) any { return r.Burndown }))
    api.GET("/analytics/burnup", h.section(func(r *analytics.Result) any { return r.Burnup }))
    api.GET("/analytics/capacity", h.section(func(r *analytics.Result) any { return r.Capacity }))
    api.GET("/analytics/health", h.section(func(r *analytics.Result) any {
        return gin.H{"health": r.Health, "stats": r.HealthStats}
    }))
    api.GET("/analytics/insights", h.section(func(r *analytics.Result) any { return r.Insights }))
    api.GET("/analytics/confidence", h.section(func(r *analytics.Result) any { return r.Confidence }))
    api.GET("/analytics/forecast", h.section(func(r *analytics.Result) any { return r.Forecast }))
    api.GET("/dependencies", h.Dependencies)

    api.GET("/state/:key", h.GetState)
    api.PUT("/state/:key", h.PutState)
    api.POST("/issues/reassign", h.Reassign)
    api.GET("/export/:kind", h.Export)

    return r
}
