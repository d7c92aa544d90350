/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "context"
    "encoding/json"
    "errors"
    "net/http"
    "strings"

    "github.com/gin-gonic/gin"
    "github.com/pulseboard-io/pulseboard/internal/adapters/tracker"
    "github.com/pulseboard-io/pulseboard/internal/analytics"
    "github.com/pulseboard-io/pulseboard/internal/config"
    "github.com/pulseboard-io/pulseboard/internal/domain"
    "github.com/pulseboard-io/pulseboard/internal/services"
    "github.com/rs/zerolog"
)

type service interface {
    Analytics(ctx context.Context) (*analytics.Result, error)
    RefreshSnapshot(ctx context.Context) (*analytics.Result, error)
    BatchReassign(ctx context.Context, reqs []services.ReassignRequest) (services.ReassignReport, error)
    GetDocument(ctx context.Context, key string) (json.RawMessage, error)
    PutDocument(ctx context.Context, key string, doc json.RawMessage) error
    ExportCSV(ctx context.Context, kind string) ([]byte, error)
}

type Handlers struct {
    cfg config.Config
    log zerolog.Logger
    svc service
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc any) *Handlers {
    return &Handlers{cfg: cfg, log: log, svc: svc.(service)}
}

func (h *Handlers) Healthz(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

// fail maps the error taxonomy to status codes: invariant violations are the
// caller's data (422), tracker failures are upstream (502).
func (h *Handlers) fail(c *gin.Context, err error) {
    var inv domain.InvariantError
    if errors.As(err, &inv) {
        c.JSON(http.StatusUnprocessableEntity, gin.H{"kind": "invariant", "path": inv.Path, "detail": inv.Detail})
        return
    }
    var api *tracker.APIError
    if errors.As(err, &api) {
        c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "upstreamStatus": api.Status})
        return
    }
    c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (h *Handlers) Result(c *gin.Context) {
    r, err := h.svc.Analytics(c.Request.Context())
    if err != nil { h.fail(c, err); return }
    c.JSON(http.StatusOK, r)
}

func (h *Handlers) Refresh(c *gin.Context) {
    r, err := h.svc.RefreshSnapshot(c.Request.Context())
    if err != nil { h.fail(c, err); return }
    c.JSON(http.StatusOK, r)
}

// section serves one component of the cached result.
func (h *Handlers) section(pick func(*analytics.Result) any) gin.HandlerFunc {
    return func(c *gin.Context) {
        r, err := h.svc.Analytics(c.Request.Context())
        if err != nil { h.fail(c, err); return }
        c.JSON(http.StatusOK, pick(r))
    }
}

// Dependencies supports edge-level filtering; cycles and the critical path
// always come from the full graph.
func (h *Handlers) Dependencies(c *gin.Context) {
    r, err := h.svc.Analytics(c.Request.Context())
    if err != nil { h.fail(c, err); return }
    g := r.Dependencies
    if level := c.Query("level"); level != "" {
        g = analytics.Graph{
            Nodes:        g.Nodes,
            Edges:        analytics.FilterEdges(g, level),
            Cycles:       g.Cycles,
            CriticalPath: g.CriticalPath,
        }
    }
    c.JSON(http.StatusOK, g)
}

func (h *Handlers) GetState(c *gin.Context) {
    doc, err := h.svc.GetDocument(c.Request.Context(), c.Param("key"))
    if err != nil { h.fail(c, err); return }
    if doc == nil {
        c.JSON(http.StatusNotFound, gin.H{"error": "no document"})
        return
    }
    c.Data(http.StatusOK, "application/json", doc)
}

func (h *Handlers) PutState(c *gin.Context) {
    var doc json.RawMessage
    if err := c.ShouldBindJSON(&doc); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    if err := h.svc.PutDocument(c.Request.Context(), c.Param("key"), doc); err != nil {
        h.fail(c, err)
        return
    }
    c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) Reassign(c *gin.Context) {
    var reqs []services.ReassignRequest
    if err := c.ShouldBindJSON(&reqs); err != nil {
        c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
        return
    }
    report, err := h.svc.BatchReassign(c.Request.Context(), reqs)
    if err != nil { h.fail(c, err); return }
    // Partial failure is a 200 with the report; the caller decides on
    // retries.
    c.JSON(http.StatusOK, report)
}

func (h *Handlers) Export(c *gin.Context) {
    kind := strings.TrimSuffix(c.Param("kind"), ".csv")
    data, err := h.svc.ExportCSV(c.Request.Context(), kind)
    if err != nil { h.fail(c, err); return }
    c.Header("Content-Disposition", `attachment; filename="`+kind+`.csv"`)
    c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}
