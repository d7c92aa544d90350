/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

var (
    refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
        Namespace: "pulseboard",
        Name:      "snapshot_refresh_total",
        Help:      "Snapshot refreshes by outcome.",
    }, []string{"outcome"})

    refreshSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
        Namespace: "pulseboard",
        Name:      "snapshot_refresh_seconds",
        Help:      "End-to-end snapshot refresh latency, fetch through analytics.",
        Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
    })

    reassignTotal = promauto.NewCounterVec(prometheus.CounterOpts{
        Namespace: "pulseboard",
        Name:      "reassign_total",
        Help:      "Issue reassignments by outcome.",
    }, []string{"outcome"})
)
