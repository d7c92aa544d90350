/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package analytics

import (
    "fmt"
    "math"
    "time"

    "github.com/pulseboard-io/pulseboard/internal/domain"
)

const (
    StatusOverloaded = "overloaded"
    StatusAtCapacity = "at-capacity"
    StatusBusy       = "busy"
    StatusAvailable  = "available"

    // Sources for the hours-per-unit mapping, most specific first.
    SourceIndividual  = "individual"
    SourceTeamAverage = "team-average"
    SourceStatic      = "static"
)

type MemberCapacity struct {
    Username          string  `json:"username"`
    Name              string  `json:"name"`
    Role              string  `json:"role"`
    SprintWorkDays    int     `json:"sprintWorkDays"`
    DailyHours        float64 `json:"dailyHours"`
    SprintCapacity    float64 `json:"sprintCapacity"`
    AbsenceHours      float64 `json:"absenceHours"`
    AvailableCapacity float64 `json:"availableCapacity"`
    MetricValue       int     `json:"metricValue"`
    HoursPerUnit      float64 `json:"hoursPerUnit"`
    HoursPerUnitFrom  string  `json:"hoursPerUnitSource"`
    AllocatedHours    float64 `json:"allocatedHours"`
    Utilization       int     `json:"utilization"`
    Status            string  `json:"status"`
    Color             string  `json:"color"`
}

type Reallocation struct {
    From           string `json:"from"`
    To             string `json:"to"`
    SuggestedUnits int    `json:"suggestedUnits"`
    Rationale      string `json:"rationale"`
}

type CapacityReport struct {
    Sprint      string           `json:"sprint"`
    Members     []MemberCapacity `json:"members"`
    Suggestions []Reallocation   `json:"suggestions"`
}

// compatibleRoles widens reallocation candidates beyond exact role matches.
var compatibleRoles = map[string]map[string]bool{
    domain.RoleProductOwner:      {domain.RoleInitiativeManager: true},
    domain.RoleInitiativeManager: {domain.RoleProductOwner: true},
}

func rolesCompatible(a, b string) bool {
    if a == b { return true }
    return compatibleRoles[a][b]
}

// TeamCapacity computes per-member sprint capacity, absence-adjusted
// availability and velocity-based effort allocation, plus reallocation
// suggestions for overloaded members.
func TeamCapacity(team []domain.TeamMember, absences []domain.Absence, issues []domain.Issue,
    cfg domain.VelocityConfig, sprints []SprintVelocity, current string, now time.Time) CapacityReport {

    report := CapacityReport{Sprint: current, Members: []MemberCapacity{}, Suggestions: []Reallocation{}}
    if len(team) == 0 { return report }

    var iterStart, iterEnd time.Time
    for _, sv := range sprints {
        if sv.Name == current && sv.StartDate != nil && sv.DueDate != nil {
            iterStart = NormalizeDayStart(*sv.StartDate)
            iterEnd = NormalizeDayStart(*sv.DueDate)
        }
    }
    workDays := 0
    if !iterStart.IsZero() { workDays = WorkingDaysBetween(iterStart, iterEnd) }

    teamHPU, teamOK := teamAverageHPU(team, absences, issues, cfg, sprints, now)

    for _, m := range team {
        mc := MemberCapacity{
            Username:       m.Username,
            Name:           m.Name,
            Role:           m.Role,
            SprintWorkDays: workDays,
        }
        weekly := m.WeeklyHours
        if weekly <= 0 { weekly = 40 }
        mc.DailyHours = float64(weekly) / 5
        mc.SprintCapacity = float64(workDays) * mc.DailyHours
        if !iterStart.IsZero() {
            mc.AbsenceHours = absenceHours(m.Username, absences, iterStart, iterEnd, mc.DailyHours)
        }
        mc.AvailableCapacity = math.Max(0, mc.SprintCapacity-mc.AbsenceHours)

        for _, i := range issues {
            if i.Closed() || i.Assignee == nil || i.Assignee.Username != m.Username { continue }
            if cfg.MetricType == domain.MetricPoints {
                mc.MetricValue += i.Points()
            } else {
                mc.MetricValue++
            }
        }

        mc.HoursPerUnit, mc.HoursPerUnitFrom = hoursPerUnit(m, absences, issues, cfg, sprints, teamHPU, teamOK, now)
        mc.AllocatedHours = float64(mc.MetricValue) * mc.HoursPerUnit
        if mc.AvailableCapacity > 0 {
            mc.Utilization = int(math.Round(mc.AllocatedHours / mc.AvailableCapacity * 100))
        }
        switch {
        case mc.Utilization >= 100:
            mc.Status, mc.Color = StatusOverloaded, "red"
        case mc.Utilization >= 80:
            mc.Status, mc.Color = StatusAtCapacity, "orange"
        case mc.Utilization >= 60:
            mc.Status, mc.Color = StatusBusy, "yellow"
        default:
            mc.Status, mc.Color = StatusAvailable, "green"
        }
        report.Members = append(report.Members, mc)
    }

    report.Suggestions = reallocations(report.Members)
    return report
}

// absenceHours sums working days of each absence overlap with the sprint,
// converted to hours.
func absenceHours(username string, absences []domain.Absence, iterStart, iterEnd time.Time, dailyHours float64) float64 {
    total := 0.0
    for _, a := range absences {
        if a.Username != username { continue }
        start := NormalizeDayStart(a.StartDate)
        end := NormalizeDayStart(a.EndDate)
        if start.Before(iterStart) { start = iterStart }
        if end.After(iterEnd) { end = iterEnd }
        if end.Before(start) { continue }
        total += float64(WorkingDaysBetween(start, end)) * dailyHours
    }
    return total
}

// hoursPerUnit resolves the effort mapping per the velocity config. Dynamic
// mode derives an individual rate from the member's recently completed work
// and degrades to the team average, then to the static config.
func hoursPerUnit(m domain.TeamMember, absences []domain.Absence, issues []domain.Issue,
    cfg domain.VelocityConfig, sprints []SprintVelocity, teamHPU float64, teamOK bool, now time.Time) (float64, string) {

    static := cfg.StaticHoursPerIssue
    if cfg.MetricType == domain.MetricPoints { static = cfg.StaticHoursPerPoint }

    if cfg.Mode != domain.VelocityModeDynamic { return static, SourceStatic }

    hours, units := observedWork(m, absences, issues, cfg, sprints, now)
    if units > 0 && hours > 0 { return hours / float64(units), SourceIndividual }
    if teamOK { return teamHPU, SourceTeamAverage }
    return static, SourceStatic
}

// observedWork maps a member's completed metric in the lookback window to
// the hours they had available in those sprints.
func observedWork(m domain.TeamMember, absences []domain.Absence, issues []domain.Issue,
    cfg domain.VelocityConfig, sprints []SprintVelocity, now time.Time) (hours float64, units int) {

    lookback := cfg.LookbackIterations
    if lookback <= 0 { lookback = 3 }
    var window []SprintVelocity
    for _, sv := range sprints {
        if completedBefore(sv, now) && sv.StartDate != nil && sv.DueDate != nil { window = append(window, sv) }
    }
    if len(window) > lookback { window = window[len(window)-lookback:] }

    weekly := m.WeeklyHours
    if weekly <= 0 { weekly = 40 }
    daily := float64(weekly) / 5

    for _, sv := range window {
        start := NormalizeDayStart(*sv.StartDate)
        end := NormalizeDayStart(*sv.DueDate)
        avail := float64(WorkingDaysBetween(start, end))*daily - absenceHours(m.Username, absences, start, end, daily)
        if avail < 0 { avail = 0 }
        done := 0
        for _, i := range issues {
            if !i.Closed() || i.Assignee == nil || i.Assignee.Username != m.Username { continue }
            if ExtractSprint(i.Labels, i.Iteration) != sv.Name { continue }
            if cfg.MetricType == domain.MetricPoints {
                done += i.Points()
            } else {
                done++
            }
        }
        if done > 0 {
            hours += avail
            units += done
        }
    }
    return hours, units
}

func teamAverageHPU(team []domain.TeamMember, absences []domain.Absence, issues []domain.Issue,
    cfg domain.VelocityConfig, sprints []SprintVelocity, now time.Time) (float64, bool) {

    var hours float64
    var units int
    for _, m := range team {
        h, u := observedWork(m, absences, issues, cfg, sprints, now)
        hours += h
        units += u
    }
    if units == 0 || hours == 0 { return 0, false }
    return hours / float64(units), true
}

// reallocations pairs overloaded members with under-utilized compatible
// members; a suggestion is only emitted when at least one unit can move.
func reallocations(members []MemberCapacity) []Reallocation {
    out := []Reallocation{}
    for _, from := range members {
        if from.Status != StatusOverloaded || from.HoursPerUnit <= 0 { continue }
        excess := from.AllocatedHours - from.AvailableCapacity
        if excess <= 0 { continue }
        for _, to := range members {
            if to.Username == from.Username || to.Utilization >= 60 { continue }
            if !rolesCompatible(from.Role, to.Role) || to.HoursPerUnit <= 0 { continue }
            slack := to.AvailableCapacity - to.AllocatedHours
            if slack <= 0 { continue }
            units := int(math.Min(
                math.Ceil(excess/from.HoursPerUnit),
                math.Floor(slack/to.HoursPerUnit),
            ))
            if units < 1 { continue }
            out = append(out, Reallocation{
                From:           from.Username,
                To:             to.Username,
                SuggestedUnits: units,
                Rationale: fmt.Sprintf("%s is at %d%% utilization with %.0fh over capacity; %s (%s) has %.0fh available",
                    from.Username, from.Utilization, excess, to.Username, to.Role, slack),
            })
        }
    }
    return out
}
