/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package analytics

import (
    "fmt"
    "math"
    "time"

    "github.com/pulseboard-io/pulseboard/internal/domain"
)

type BurnPoint struct {
    Date      string `json:"date"`
    Remaining int    `json:"remaining"`
}

type Burndown struct {
    Ideal       []BurnPoint `json:"ideal"`
    Actual      []BurnPoint `json:"actual"`
    Total       int         `json:"total"`
    Mode        string      `json:"mode"`
    SprintStart string      `json:"sprintStart"`
    SprintEnd   string      `json:"sprintEnd"`
}

// SprintBurndown builds the ideal and actual per-day remaining series for
// one iteration. Both series are joined on DateKey; actual stops at today.
func SprintBurndown(issues []domain.Issue, sprint string, mode string, now time.Time) Burndown {
    var inSprint []domain.Issue
    for _, i := range issues {
        if ExtractSprint(i.Labels, i.Iteration) == sprint { inSprint = append(inSprint, i) }
    }
    bd := Burndown{Mode: mode, Ideal: []BurnPoint{}, Actual: []BurnPoint{}}
    if len(inSprint) == 0 { return bd }

    metric := func(i domain.Issue) int {
        if mode == domain.MetricPoints { return i.Points() }
        return 1
    }

    var start, end time.Time
    for _, i := range inSprint {
        if it := i.Iteration; it != nil {
            if start.IsZero() && it.StartDate != nil { start = NormalizeDayStart(*it.StartDate) }
            if end.IsZero() && it.DueDate != nil { end = NormalizeDayEnd(*it.DueDate) }
        }
    }
    if start.IsZero() {
        for _, i := range inSprint {
            if start.IsZero() || i.CreatedAt.Before(start) { start = i.CreatedAt }
        }
        start = NormalizeDayStart(start)
    }
    if end.IsZero() { end = NormalizeDayEnd(start.AddDate(0, 0, 14)) }

    total := 0
    for _, i := range inSprint { total += metric(i) }
    bd.Total = total
    bd.SprintStart = DateKey(start)
    bd.SprintEnd = DateKey(end)

    days := daysBetween(start, end)
    if days < 0 { days = 0 }
    for d := 0; d <= days; d++ {
        rem := total
        if days > 0 {
            rem = int(math.Round(float64(total) - float64(total)*float64(d)/float64(days)))
        }
        if rem < 0 { rem = 0 }
        bd.Ideal = append(bd.Ideal, BurnPoint{Date: DateKey(start.AddDate(0, 0, d)), Remaining: rem})
    }

    // Closed-metric sums keyed by local close day.
    closedOn := map[string]int{}
    for _, i := range inSprint {
        if i.Closed() && i.ClosedAt != nil { closedOn[DateKey(*i.ClosedAt)] += metric(i) }
    }
    lastDay := days
    if td := daysBetween(start, now); td < lastDay { lastDay = td }
    remaining := total
    for d := 0; d <= lastDay; d++ {
        key := DateKey(start.AddDate(0, 0, d))
        if d > 0 { remaining -= closedOn[key] }
        if remaining < 0 { remaining = 0 }
        bd.Actual = append(bd.Actual, BurnPoint{Date: key, Remaining: remaining})
    }
    return bd
}

type BurnupPoint struct {
    Date            string `json:"date"`
    TotalScope      int    `json:"totalScope"`
    Completed       int    `json:"completed"`
    Remaining       int    `json:"remaining"`
    TotalPoints     int    `json:"totalPoints"`
    CompletedPoints int    `json:"completedPoints"`
    RemainingPoints int    `json:"remainingPoints"`
}

type Burnup struct {
    Points              []BurnupPoint `json:"points"`
    ScopeGrowth         int           `json:"scopeGrowth"`
    AvgVelocity         float64       `json:"avgVelocity"`
    ProjectedCompletion string        `json:"projectedCompletion,omitempty"`
}

const (
    burnupSamples = 26
    burnupMonths  = 12
)

// ProjectBurnup samples cumulative scope vs completion at evenly spaced
// points over a trailing window and extrapolates a completion date from the
// recent completion rate.
func ProjectBurnup(issues []domain.Issue, now time.Time) Burnup {
    bu := Burnup{Points: []BurnupPoint{}}
    if len(issues) == 0 { return bu }
    windowEnd := now
    windowStart := now.AddDate(0, -burnupMonths, 0)
    step := windowEnd.Sub(windowStart) / time.Duration(burnupSamples-1)
    for s := 0; s < burnupSamples; s++ {
        at := windowStart.Add(step * time.Duration(s))
        var p BurnupPoint
        p.Date = DateKey(at)
        for _, i := range issues {
            if i.CreatedAt.After(at) { continue }
            p.TotalScope++
            p.TotalPoints += i.Points()
            if i.Closed() && i.ClosedAt != nil && !i.ClosedAt.After(at) {
                p.Completed++
                p.CompletedPoints += i.Points()
            }
        }
        p.Remaining = p.TotalScope - p.Completed
        p.RemainingPoints = p.TotalPoints - p.CompletedPoints
        bu.Points = append(bu.Points, p)
    }
    first := bu.Points[0]
    last := bu.Points[len(bu.Points)-1]
    bu.ScopeGrowth = last.TotalScope - first.TotalScope
    recent := bu.Points
    if len(recent) > 6 { recent = recent[len(recent)-6:] }
    if n := len(recent) - 1; n > 0 {
        bu.AvgVelocity = float64(last.Completed-recent[0].Completed) / float64(n)
    }
    if bu.AvgVelocity > 0 && last.Remaining > 0 {
        steps := int(math.Ceil(float64(last.Remaining) / bu.AvgVelocity))
        bu.ProjectedCompletion = DateKey(windowEnd.Add(step * time.Duration(steps)))
    }
    return bu
}

type Forecast struct {
    SprintsRemaining int    `json:"sprintsRemaining"`
    CompletionDate   string `json:"completionDate,omitempty"`
    Confidence       int    `json:"confidence"`
}

// PredictCompletion estimates remaining sprints from the open issue count
// and the rolling average velocity, assuming two-week sprints.
func PredictCompletion(issues []domain.Issue, avg RollingAverage, now time.Time) Forecast {
    open := 0
    for _, i := range issues {
        if !i.Closed() { open++ }
    }
    if avg.ByIssues <= 0 || open == 0 { return Forecast{} }
    rem := int(math.Ceil(float64(open) / avg.ByIssues))
    conf := int(math.Round(60 + 2*avg.ByIssues))
    if conf > 95 { conf = 95 }
    return Forecast{
        SprintsRemaining: rem,
        CompletionDate:   DateKey(now.AddDate(0, 0, 14*rem)),
        Confidence:       conf,
    }
}

type ConfidenceFactor struct {
    Name   string `json:"name"`
    Score  int    `json:"score"`
    Max    int    `json:"max"`
    Detail string `json:"detail,omitempty"`
}

type DeliveryConfidence struct {
    Score           int                `json:"score"`
    Status          string             `json:"status"`
    Color           string             `json:"color"`
    Factors         []ConfidenceFactor `json:"factors"`
    Recommendations []string           `json:"recommendations"`
}

// DeliveryConfidenceScore is a weighted rubric over five delivery signals.
// Factor caps sum to 100, so the total is already a percentage.
func DeliveryConfidenceScore(sprints []SprintVelocity, burnup Burnup, issues []domain.Issue, trend VelocityTrend, metric string, now time.Time) DeliveryConfidence {
    dc := DeliveryConfidence{Factors: []ConfidenceFactor{}, Recommendations: []string{}}

    // 1. Velocity consistency (max 30): coefficient of variation of the
    // last three completed velocities.
    var done []float64
    for _, sv := range sprints {
        if !completedBefore(sv, now) { continue }
        if metric == domain.MetricPoints {
            done = append(done, float64(sv.VelocityByPoints))
        } else {
            done = append(done, float64(sv.VelocityByIssues))
        }
    }
    if len(done) > 3 { done = done[len(done)-3:] }
    consistency := 0
    cv := math.Inf(1)
    if len(done) >= 2 {
        mean := 0.0
        for _, v := range done { mean += v }
        mean /= float64(len(done))
        if mean > 0 {
            variance := 0.0
            for _, v := range done { variance += (v - mean) * (v - mean) }
            variance /= float64(len(done))
            cv = math.Sqrt(variance) / mean
        }
    }
    switch {
    case cv < 0.15: consistency = 30
    case cv < 0.30: consistency = 20
    case cv < 0.50: consistency = 10
    }
    dc.addFactor("velocity_consistency", consistency, 30, fmt.Sprintf("cv=%.2f over last %d sprints", cv, len(done)),
        "Stabilize sprint scope and sizing to reduce velocity variance")

    // 2. Scope stability (max 25): remaining-work change across the burnup
    // window.
    scope := 0
    scopeDetail := "no burnup data"
    if n := len(burnup.Points); n > 1 {
        firstRem := burnup.Points[0].Remaining
        lastRem := burnup.Points[n-1].Remaining
        pct := 0.0
        if firstRem > 0 { pct = float64(lastRem-firstRem) / float64(firstRem) * 100 }
        switch {
        case pct <= -20: scope = 25
        case pct < 0: scope = 22
        case pct <= 10: scope = 18
        case pct <= 25: scope = 12
        case pct <= 50: scope = 6
        }
        scopeDetail = fmt.Sprintf("remaining changed %.0f%%", pct)
    }
    dc.addFactor("scope_stability", scope, 25, scopeDetail,
        "Freeze scope or split late additions into a follow-up release")

    // 3. Completion progress (max 20).
    total, closed := 0, 0
    openCount, blocked := 0, 0
    for _, i := range issues {
        total++
        if i.Closed() {
            closed++
            continue
        }
        openCount++
        if i.HasLabel("blocker") || i.HasLabel("blocked") { blocked++ }
    }
    rate := 0
    if total > 0 { rate = roundPct(closed, total) }
    progress := 0
    switch {
    case rate >= 80: progress = 20
    case rate >= 60: progress = 15
    case rate >= 40: progress = 10
    case rate >= 20: progress = 5
    }
    dc.addFactor("completion_progress", progress, 20, fmt.Sprintf("%d%% complete", rate),
        "Prioritize closing in-flight work before starting new items")

    // 4. Risk profile (max 15): share of open issues tagged blocker/blocked.
    risk := 0
    frac := 0.0
    if openCount > 0 { frac = float64(blocked) / float64(openCount) }
    switch {
    case blocked == 0: risk = 15
    case frac < 0.05: risk = 10
    case frac < 0.10: risk = 5
    }
    dc.addFactor("risk_profile", risk, 15, fmt.Sprintf("%d of %d open issues blocked", blocked, openCount),
        "Run a blocker triage; escalate external dependencies")

    // 5. Velocity trend (max 10): long-term direction.
    tr := 0
    switch {
    case trend.LongTerm > 10: tr = 10
    case trend.LongTerm > 0: tr = 8
    case trend.LongTerm >= -10: tr = 5
    }
    dc.addFactor("velocity_trend", tr, 10, fmt.Sprintf("long-term %+d%%", trend.LongTerm),
        "Investigate the velocity decline: WIP limits, churn, team changes")

    for _, f := range dc.Factors { dc.Score += f.Score }
    switch {
    case dc.Score >= 75:
        dc.Status, dc.Color = "high", "green"
    case dc.Score >= 50:
        dc.Status, dc.Color = "medium", "yellow"
    case dc.Score >= 25:
        dc.Status, dc.Color = "low", "orange"
    default:
        dc.Status, dc.Color = "critical", "red"
    }
    return dc
}

// addFactor records a factor and, when it scored below its mid-range,
// queues the matching recommendation.
func (dc *DeliveryConfidence) addFactor(name string, score, max int, detail, recommendation string) {
    dc.Factors = append(dc.Factors, ConfidenceFactor{Name: name, Score: score, Max: max, Detail: detail})
    if score*2 < max { dc.Recommendations = append(dc.Recommendations, recommendation) }
}
