/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package analytics

import (
    "sort"
    "time"

    "github.com/pulseboard-io/pulseboard/internal/domain"
)

// Input is everything one analytics run may observe. Now is injected so a
// run is a pure function of its input.
type Input struct {
    Snapshot domain.Snapshot
    Now      time.Time
}

type EpicRollup struct {
    EpicID          int64  `json:"epicId"`
    Title           string `json:"title"`
    TotalIssues     int    `json:"totalIssues"`
    ClosedIssues    int    `json:"closedIssues"`
    TotalPoints     int    `json:"totalPoints"`
    CompletedPoints int    `json:"completedPoints"`
}

type RiskSummary struct {
    Open       int `json:"open"`
    Monitoring int `json:"monitoring"`
    Closed     int `json:"closed"`
    HighOpen   int `json:"highOpen"`
    TopScore   int `json:"topScore"`
}

type CommDay struct {
    Date   string         `json:"date"`
    Count  int            `json:"count"`
    ByType map[string]int `json:"byType"`
}

type Result struct {
    GeneratedAt   time.Time          `json:"generatedAt"`
    Sprints       []SprintVelocity   `json:"velocity"`
    AvgVelocity   RollingAverage     `json:"avgVelocity"`
    Trend         VelocityTrend      `json:"trend"`
    CurrentSprint string             `json:"currentSprint,omitempty"`
    Burndown      Burndown           `json:"burndown"`
    Burnup        Burnup             `json:"burnup"`
    Forecast      Forecast           `json:"forecast"`
    Confidence    DeliveryConfidence `json:"confidence"`
    HealthStats   HealthStats        `json:"healthStats"`
    Health        Health             `json:"health"`
    Dependencies  Graph              `json:"dependencies"`
    Capacity      CapacityReport     `json:"capacity"`
    Epics         []EpicRollup       `json:"epics"`
    Risks         RiskSummary        `json:"risks"`
    Timeline      []CommDay          `json:"communications"`
    Insights      []Insight          `json:"insights"`
}

// Run executes the full pipeline: velocity, burndown/burnup, health,
// dependencies, capacity (which reads the velocity output), then insights
// over everything. Components return empty well-formed results on missing
// data; only an invariant violation in the snapshot fails the run.
func Run(in Input) (Result, error) {
    if err := in.Snapshot.Validate(); err != nil {
        return Result{}, err
    }
    s := in.Snapshot
    now := in.Now
    r := Result{GeneratedAt: now}

    r.Sprints = SprintVelocities(s.Issues)
    r.AvgVelocity = RollingAverageLastN(r.Sprints, 3, now)
    r.CurrentSprint = CurrentSprint(r.Sprints, now)
    metric := s.Velocity.MetricType
    if metric == "" { metric = domain.MetricIssues }
    r.Trend = Trend(r.Sprints, r.CurrentSprint, metric)

    r.Burndown = SprintBurndown(s.Issues, r.CurrentSprint, metric, now)
    r.Burnup = ProjectBurnup(s.Issues, now)
    r.Forecast = PredictCompletion(s.Issues, r.AvgVelocity, now)
    r.Confidence = DeliveryConfidenceScore(r.Sprints, r.Burnup, s.Issues, r.Trend, metric, now)

    r.HealthStats = deriveHealthStats(s.Issues, now)
    r.Health = HealthScore(r.HealthStats)

    r.Dependencies = BuildGraph(s.Issues, s.Epics)

    r.Capacity = TeamCapacity(s.Team, s.Absences, s.Issues, s.Velocity, r.Sprints, r.CurrentSprint, now)

    r.Epics = epicRollups(s.Issues, s.Epics)
    r.Risks = riskSummary(s.Risks)
    r.Timeline = commTimeline(s.Communications)

    r.Insights = DetectInsights(r, s, now)
    return r, nil
}

// deriveHealthStats classifies the issue corpus for the health scorer.
// An open issue is at risk when it is labelled at-risk or due within the
// next seven days.
func deriveHealthStats(issues []domain.Issue, now time.Time) HealthStats {
    var st HealthStats
    today := NormalizeDayStart(now)
    for _, i := range issues {
        st.Total++
        if i.Closed() {
            st.Closed++
            continue
        }
        st.Open++
        if i.HasLabel("blocker") || i.HasLabel("blocked") { st.Blockers++ }
        atRisk := i.HasLabel("at-risk")
        if i.DueDate != nil {
            switch d := daysBetween(today, NormalizeDayStart(*i.DueDate)); {
            case d < 0:
                st.Overdue++
            case d <= 7:
                atRisk = true
            }
        }
        if atRisk { st.AtRisk++ }
    }
    return st
}

func epicRollups(issues []domain.Issue, epics []domain.Epic) []EpicRollup {
    byID := map[int64]*EpicRollup{}
    var order []int64
    for _, e := range epics {
        byID[e.ID] = &EpicRollup{EpicID: e.ID, Title: e.Title}
        order = append(order, e.ID)
    }
    for _, i := range issues {
        if i.Epic == nil { continue }
        r, ok := byID[i.Epic.ID]
        if !ok { continue }
        r.TotalIssues++
        r.TotalPoints += i.Points()
        if i.Closed() {
            r.ClosedIssues++
            r.CompletedPoints += i.Points()
        }
    }
    out := []EpicRollup{}
    for _, id := range order { out = append(out, *byID[id]) }
    return out
}

func riskSummary(risks []domain.Risk) RiskSummary {
    var rs RiskSummary
    for _, r := range risks {
        switch r.Status {
        case domain.RiskOpen:
            rs.Open++
        case domain.RiskMonitoring:
            rs.Monitoring++
        case domain.RiskClosed:
            rs.Closed++
        }
        if r.Status != domain.RiskClosed {
            if s := r.Score(); s > rs.TopScore { rs.TopScore = s }
            if r.Score() >= 6 && r.Status == domain.RiskOpen { rs.HighOpen++ }
        }
    }
    return rs
}

// commTimeline groups entries by the local day of their effective
// timestamp, ordered by day ascending.
func commTimeline(entries []domain.CommunicationEntry) []CommDay {
    byDay := map[string]*CommDay{}
    var keys []string
    for _, c := range entries {
        at := c.EffectiveAt()
        if at.IsZero() { continue }
        key := DateKey(at)
        d, ok := byDay[key]
        if !ok {
            d = &CommDay{Date: key, ByType: map[string]int{}}
            byDay[key] = d
            keys = append(keys, key)
        }
        d.Count++
        d.ByType[c.Type]++
    }
    sort.Strings(keys)
    out := []CommDay{}
    for _, k := range keys { out = append(out, *byDay[k]) }
    return out
}
