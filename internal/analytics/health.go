/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package analytics

import "math"

type HealthStats struct {
    Total    int `json:"total"`
    Closed   int `json:"closed"`
    Open     int `json:"open"`
    Blockers int `json:"blockers"`
    Overdue  int `json:"overdue"`
    AtRisk   int `json:"atRisk"`
}

type Health struct {
    Completion int    `json:"completion"`
    Schedule   int    `json:"schedule"`
    Blocker    int    `json:"blocker"`
    Risk       int    `json:"risk"`
    Total      int    `json:"total"`
    Status     string `json:"status"`
}

// HealthScore folds the four sub-scores into the weighted composite:
// 30% completion, 25% schedule, 25% blockers, 20% risk.
func HealthScore(stats HealthStats) Health {
    var h Health
    if stats.Total > 0 {
        h.Completion = clampScore(100 * float64(stats.Closed) / float64(stats.Total))
        h.Schedule = clampScore(100 * (1 - float64(stats.Overdue)/float64(stats.Total)))
    }
    openFloor := stats.Open
    if openFloor < 1 { openFloor = 1 }
    h.Blocker = clampScore(100 * (1 - float64(stats.Blockers)/float64(openFloor)))
    h.Risk = clampScore(100 * (1 - float64(stats.AtRisk)/float64(openFloor)))
    if stats.Total == 0 {
        // Empty snapshot scores zero across the board, not a false green.
        h.Blocker, h.Risk = 0, 0
    }
    h.Total = int(math.Round(0.30*float64(h.Completion) + 0.25*float64(h.Schedule) + 0.25*float64(h.Blocker) + 0.20*float64(h.Risk)))
    switch {
    case stats.Total == 0:
        h.Status = "red"
    case h.Total >= 80:
        h.Status = "green"
    case h.Total >= 60:
        h.Status = "amber"
    default:
        h.Status = "red"
    }
    return h
}

func clampScore(v float64) int {
    if v < 0 { return 0 }
    if v > 100 { return 100 }
    return int(math.Round(v))
}
