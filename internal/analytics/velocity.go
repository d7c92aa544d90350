/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package analytics

import (
    "math"
    "sort"
    "strconv"
    "time"

    "github.com/pulseboard-io/pulseboard/internal/domain"
)

type SprintVelocity struct {
    Name                 string     `json:"name"`
    StartDate            *time.Time `json:"startDate,omitempty"`
    DueDate              *time.Time `json:"dueDate,omitempty"`
    TotalIssues          int        `json:"totalIssues"`
    CompletedIssues      int        `json:"completedIssues"`
    OpenIssues           int        `json:"openIssues"`
    TotalPoints          int        `json:"totalPoints"`
    CompletedPoints      int        `json:"completedPoints"`
    OpenPoints           int        `json:"openPoints"`
    VelocityByIssues     int        `json:"velocityByIssues"`
    VelocityByPoints     int        `json:"velocityByPoints"`
    CompletionRate       int        `json:"completionRate"`
    CompletionRatePoints int        `json:"completionRatePoints"`
}

type RollingAverage struct {
    ByIssues    float64 `json:"byIssues"`
    ByPoints    float64 `json:"byPoints"`
    SprintsUsed int     `json:"sprintsUsed"`
}

type VelocityTrend struct {
    ShortTerm int `json:"shortTerm"`
    LongTerm  int `json:"longTerm"`
}

// SprintVelocities aggregates every iteration mentioned by any issue into a
// per-sprint record, sorted by start date when available, then numeric name,
// then lexicographic.
func SprintVelocities(issues []domain.Issue) []SprintVelocity {
    byName := map[string]*SprintVelocity{}
    var order []string
    for _, i := range issues {
        name := ExtractSprint(i.Labels, i.Iteration)
        if name == "" { continue }
        sv, ok := byName[name]
        if !ok {
            sv = &SprintVelocity{Name: name}
            byName[name] = sv
            order = append(order, name)
        }
        if i.Iteration != nil {
            if sv.StartDate == nil && i.Iteration.StartDate != nil { sv.StartDate = i.Iteration.StartDate }
            if sv.DueDate == nil && i.Iteration.DueDate != nil { sv.DueDate = i.Iteration.DueDate }
        }
        sv.TotalIssues++
        sv.TotalPoints += i.Points()
        if i.Closed() {
            sv.CompletedIssues++
            sv.CompletedPoints += i.Points()
        } else {
            sv.OpenIssues++
            sv.OpenPoints += i.Points()
        }
    }
    out := make([]SprintVelocity, 0, len(order))
    for _, name := range order {
        sv := byName[name]
        sv.VelocityByIssues = sv.CompletedIssues
        sv.VelocityByPoints = sv.CompletedPoints
        sv.CompletionRate = roundPct(sv.CompletedIssues, sv.TotalIssues)
        sv.CompletionRatePoints = roundPct(sv.CompletedPoints, sv.TotalPoints)
        out = append(out, *sv)
    }
    sort.SliceStable(out, func(a, b int) bool { return sprintLess(out[a], out[b]) })
    return out
}

func sprintLess(a, b SprintVelocity) bool {
    if a.StartDate != nil && b.StartDate != nil {
        if !a.StartDate.Equal(*b.StartDate) { return a.StartDate.Before(*b.StartDate) }
        return a.Name < b.Name
    }
    na, aerr := strconv.Atoi(a.Name)
    nb, berr := strconv.Atoi(b.Name)
    if aerr == nil && berr == nil && na != nb { return na < nb }
    return a.Name < b.Name
}

func roundPct(part, whole int) int {
    if whole == 0 { return 0 }
    return int(math.Round(float64(part) / float64(whole) * 100))
}

// completedBefore reports whether the sprint ended strictly before today.
// Sprints without a due date never count as completed.
func completedBefore(sv SprintVelocity, now time.Time) bool {
    return sv.DueDate != nil && sv.DueDate.Before(NormalizeDayStart(now))
}

// RollingAverageLastN averages velocity over the N most recent completed
// sprints; fewer are averaged when fewer exist, zeros when none do.
func RollingAverageLastN(sprints []SprintVelocity, n int, now time.Time) RollingAverage {
    if n <= 0 { n = 3 }
    var done []SprintVelocity
    for _, sv := range sprints {
        if completedBefore(sv, now) { done = append(done, sv) }
    }
    if len(done) > n { done = done[len(done)-n:] }
    if len(done) == 0 { return RollingAverage{} }
    var issues, points int
    for _, sv := range done {
        issues += sv.VelocityByIssues
        points += sv.VelocityByPoints
    }
    return RollingAverage{
        ByIssues:    float64(issues) / float64(len(done)),
        ByPoints:    float64(points) / float64(len(done)),
        SprintsUsed: len(done),
    }
}

// Trend computes the short/long-term velocity change against the sprint
// named current. Short term compares current to its predecessor; long term
// compares the last three sprints to the three before that and needs at
// least four completed sprints of history.
func Trend(sprints []SprintVelocity, current string, metric string) VelocityTrend {
    idx := -1
    for i, sv := range sprints {
        if sv.Name == current { idx = i; break }
    }
    if idx < 0 { return VelocityTrend{} }
    v := func(i int) float64 {
        if metric == domain.MetricPoints { return float64(sprints[i].VelocityByPoints) }
        return float64(sprints[i].VelocityByIssues)
    }
    var t VelocityTrend
    if idx >= 1 && v(idx-1) > 0 {
        t.ShortTerm = int(math.Round((v(idx) - v(idx-1)) / v(idx-1) * 100))
    }
    if idx >= 3 {
        recentLo := idx - 2
        if recentLo < 0 { recentLo = 0 }
        olderHi := idx - 3
        olderLo := idx - 5
        if olderLo < 0 { olderLo = 0 }
        var recent, older float64
        for i := recentLo; i <= idx; i++ { recent += v(i) }
        recent /= float64(idx - recentLo + 1)
        for i := olderLo; i <= olderHi; i++ { older += v(i) }
        older /= float64(olderHi - olderLo + 1)
        if older > 0 {
            t.LongTerm = int(math.Round((recent - older) / older * 100))
        }
    }
    return t
}

// CurrentSprint picks the iteration containing today, else the most recently
// ended one, else any sprint with open issues (preferring the numerically
// largest name). Returns "" when no sprint exists.
func CurrentSprint(sprints []SprintVelocity, now time.Time) string {
    today := NormalizeDayStart(now)
    for _, sv := range sprints {
        if sv.StartDate != nil && sv.DueDate != nil &&
            !today.Before(NormalizeDayStart(*sv.StartDate)) && !today.After(NormalizeDayEnd(*sv.DueDate)) {
            return sv.Name
        }
    }
    best := ""
    var bestEnd time.Time
    for _, sv := range sprints {
        if sv.DueDate != nil && sv.DueDate.Before(today) {
            if best == "" || sv.DueDate.After(bestEnd) {
                best = sv.Name
                bestEnd = *sv.DueDate
            }
        }
    }
    if best != "" { return best }
    bestNum := -1
    for _, sv := range sprints {
        if sv.OpenIssues == 0 { continue }
        if n, err := strconv.Atoi(sv.Name); err == nil {
            if n > bestNum { bestNum = n; best = sv.Name }
        } else if best == "" {
            best = sv.Name
        }
    }
    return best
}
