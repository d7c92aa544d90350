/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package analytics

import (
    "fmt"
    "sort"
    "time"

    "github.com/pulseboard-io/pulseboard/internal/domain"
)

const (
    InsightCritical = "critical"
    InsightWarning  = "warning"
    InsightInfo     = "info"
    InsightSuccess  = "success"
)

type Insight struct {
    Type           string `json:"type"`
    Category       string `json:"category"`
    Title          string `json:"title"`
    Description    string `json:"description"`
    Impact         string `json:"impact,omitempty"`
    Recommendation string `json:"recommendation,omitempty"`
    Confidence     string `json:"confidence"`
}

var insightRank = map[string]int{InsightCritical: 0, InsightWarning: 1, InsightInfo: 2, InsightSuccess: 3}

// DetectInsights runs the rule suite over the assembled analytics outputs
// and returns the findings ordered most critical first. Every rule is a
// pure function of the result; nothing here reads the clock or the wire.
func DetectInsights(r Result, snapshot domain.Snapshot, now time.Time) []Insight {
    var out []Insight
    out = append(out, velocityRules(r)...)
    out = append(out, bottleneckRules(r)...)
    out = append(out, milestoneRules(snapshot, now)...)
    out = append(out, epicRules(r)...)
    out = append(out, riskRules(r)...)
    sort.SliceStable(out, func(a, b int) bool { return insightRank[out[a].Type] < insightRank[out[b].Type] })
    if out == nil { out = []Insight{} }
    return out
}

func velocityRules(r Result) []Insight {
    var out []Insight
    if r.Trend.ShortTerm < -10 {
        desc := fmt.Sprintf("Velocity dropped %d%% against the previous sprint.", -r.Trend.ShortTerm)
        // Sub-causes sharpen the recommendation when the data supports them.
        rec := "Review sprint commitments and unblock stalled work."
        for _, sv := range r.Sprints {
            if sv.Name != r.CurrentSprint { continue }
            if sv.CompletionRate < 50 {
                desc += fmt.Sprintf(" Completion rate is only %d%%.", sv.CompletionRate)
                rec = "Carry-over is accumulating: trim next sprint's commitment."
            }
            if sv.OpenIssues > sv.CompletedIssues*2 && sv.CompletedIssues > 0 {
                desc += fmt.Sprintf(" %d issues remain in flight.", sv.OpenIssues)
                rec = "Too much parallel work: set a WIP limit and finish before starting."
            }
        }
        out = append(out, Insight{
            Type: InsightCritical, Category: "velocity",
            Title:          "Velocity decline",
            Description:    desc,
            Impact:         "Delivery forecast slips if the trend continues.",
            Recommendation: rec,
            Confidence:     "high",
        })
    }
    if r.Trend.ShortTerm > 10 {
        out = append(out, Insight{
            Type: InsightInfo, Category: "velocity",
            Title:       "Velocity improvement",
            Description: fmt.Sprintf("Velocity rose %d%% against the previous sprint.", r.Trend.ShortTerm),
            Confidence:  "medium",
        })
    }
    openIssues := r.HealthStats.Open
    if r.AvgVelocity.SprintsUsed > 0 && r.AvgVelocity.ByIssues < 3 && openIssues > 20 {
        out = append(out, Insight{
            Type: InsightWarning, Category: "velocity",
            Title:          "Low velocity against backlog size",
            Description:    fmt.Sprintf("Average velocity is %.1f issues per sprint with %d open issues.", r.AvgVelocity.ByIssues, openIssues),
            Impact:         fmt.Sprintf("At the current rate the backlog takes %d+ sprints.", openIssues/int(maxf(r.AvgVelocity.ByIssues, 1))),
            Recommendation: "Break large issues down; small items flow faster and surface blockers earlier.",
            Confidence:     "medium",
        })
    }
    return out
}

func bottleneckRules(r Result) []Insight {
    var out []Insight
    if open := r.HealthStats.Open; open > 0 {
        if b := r.HealthStats.Blockers; b > 0 && (b >= 3 || b*100/open >= 20) {
            typ := InsightWarning
            if b*100/open >= 30 { typ = InsightCritical }
            out = append(out, Insight{
                Type: typ, Category: "bottlenecks",
                Title:          "Blocker concentration",
                Description:    fmt.Sprintf("%d of %d open issues are blocked.", b, open),
                Impact:         "Blocked work ages silently and compresses the end of the sprint.",
                Recommendation: "Hold a blocker triage and assign an owner per blocker.",
                Confidence:     "high",
            })
        }
        if o := r.HealthStats.Overdue; o > 0 && o*100/open >= 15 {
            out = append(out, Insight{
                Type: InsightWarning, Category: "quality",
                Title:          "Overdue concentration",
                Description:    fmt.Sprintf("%d open issues are past their due date.", o),
                Recommendation: "Re-baseline due dates or escalate the slipping items.",
                Confidence:     "high",
            })
        }
    }
    if len(r.Dependencies.Cycles) > 0 {
        out = append(out, Insight{
            Type: InsightCritical, Category: "bottlenecks",
            Title:          "Circular dependencies",
            Description:    fmt.Sprintf("%d dependency cycle(s) detected; the affected issues block each other.", len(r.Dependencies.Cycles)),
            Recommendation: "Break the cycle by re-scoping one of the participants.",
            Confidence:     "high",
        })
    }
    return out
}

func milestoneRules(snapshot domain.Snapshot, now time.Time) []Insight {
    var out []Insight
    today := NormalizeDayStart(now)
    for _, m := range snapshot.Milestones {
        if m.State == domain.StateClosed || m.DueDate == nil { continue }
        due := NormalizeDayStart(*m.DueDate)
        days := daysBetween(today, due)
        if days < 0 || days > 7 { continue }
        openLeft := 0
        for _, i := range snapshot.Issues {
            if !i.Closed() && i.MilestoneTitle == m.Title { openLeft++ }
        }
        if openLeft == 0 { continue }
        out = append(out, Insight{
            Type: InsightWarning, Category: "milestones",
            Title:          fmt.Sprintf("Milestone %q at risk", m.Title),
            Description:    fmt.Sprintf("Due in %d day(s) with %d open issue(s).", days, openLeft),
            Impact:         "The milestone slips unless the remaining issues close or move.",
            Recommendation: "Descope non-critical issues or move them to the next milestone.",
            Confidence:     "high",
        })
    }
    return out
}

func epicRules(r Result) []Insight {
    var out []Insight
    for _, e := range r.Epics {
        if e.TotalIssues < 5 { continue }
        rate := roundPct(e.ClosedIssues, e.TotalIssues)
        if rate < 25 {
            out = append(out, Insight{
                Type: InsightInfo, Category: "epics",
                Title:          fmt.Sprintf("Epic %q barely started", e.Title),
                Description:    fmt.Sprintf("%d of %d issues closed (%d%%).", e.ClosedIssues, e.TotalIssues, rate),
                Recommendation: "Check whether the epic is still planned for this cycle.",
                Confidence:     "low",
            })
        }
    }
    return out
}

func riskRules(r Result) []Insight {
    var out []Insight
    if r.Risks.HighOpen > 0 {
        out = append(out, Insight{
            Type: InsightWarning, Category: "risks",
            Title:          "High-score open risks",
            Description:    fmt.Sprintf("%d open risk(s) with score >= 6 (top score %d).", r.Risks.HighOpen, r.Risks.TopScore),
            Recommendation: "Review mitigations with the risk owners.",
            Confidence:     "high",
        })
    }
    return out
}

func maxf(a, b float64) float64 {
    if a > b { return a }
    return b
}
