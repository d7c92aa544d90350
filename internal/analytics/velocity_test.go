/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package analytics

import (
    "testing"
    "time"

    "github.com/pulseboard-io/pulseboard/internal/domain"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func sprintIssue(iid int, sprint string, start, due time.Time, closed bool, weight int) domain.Issue {
    i := domain.Issue{
        IID:       iid,
        Title:     "issue",
        State:     domain.StateOpened,
        CreatedAt: start,
        Iteration: &domain.Iteration{Name: sprint, StartDate: &start, DueDate: &due},
    }
    if weight > 0 { i.Weight = &weight }
    if closed {
        i.State = domain.StateClosed
        c := due
        i.ClosedAt = &c
    }
    return i
}

// completedSprints builds n back-to-back two-week sprints ending before now,
// each with the given completed issue count.
func completedSprints(names []string, completed []int, lastEnd time.Time) []domain.Issue {
    var issues []domain.Issue
    end := lastEnd
    for k := len(names) - 1; k >= 0; k-- {
        start := end.AddDate(0, 0, -13)
        iid := 1000 * (k + 1)
        for j := 0; j < completed[k]; j++ {
            issues = append(issues, sprintIssue(iid+j, names[k], start, end, true, 0))
        }
        end = start.AddDate(0, 0, -1)
    }
    return issues
}

func TestSprintVelocities_AggregatesAndSorts(t *testing.T) {
    s1, e1 := d(2025, 1, 1), d(2025, 1, 14)
    s2, e2 := d(2025, 1, 15), d(2025, 1, 28)
    issues := []domain.Issue{
        sprintIssue(1, "Sprint 2", s2, e2, false, 3),
        sprintIssue(2, "Sprint 1", s1, e1, true, 2),
        sprintIssue(3, "Sprint 1", s1, e1, false, 5),
    }
    out := SprintVelocities(issues)
    require.Len(t, out, 2)
    assert.Equal(t, "Sprint 1", out[0].Name)
    assert.Equal(t, 2, out[0].TotalIssues)
    assert.Equal(t, 1, out[0].CompletedIssues)
    assert.Equal(t, 2, out[0].VelocityByPoints)
    assert.Equal(t, 50, out[0].CompletionRate)
    assert.Equal(t, 29, out[0].CompletionRatePoints)
    assert.Equal(t, "Sprint 2", out[1].Name)
    assert.Equal(t, 0, out[1].CompletionRate)
}

func TestSprintVelocities_IssuesWithoutSprintAreSkipped(t *testing.T) {
    issues := []domain.Issue{{IID: 1, State: domain.StateOpened, CreatedAt: d(2025, 1, 1)}}
    assert.Empty(t, SprintVelocities(issues))
}

func TestSprintVelocities_NumericNameOrderWithoutDates(t *testing.T) {
    issues := []domain.Issue{
        {IID: 1, State: domain.StateOpened, CreatedAt: d(2025, 1, 1), Labels: []string{"sprint::10"}},
        {IID: 2, State: domain.StateOpened, CreatedAt: d(2025, 1, 1), Labels: []string{"sprint::2"}},
    }
    out := SprintVelocities(issues)
    require.Len(t, out, 2)
    assert.Equal(t, "2", out[0].Name)
    assert.Equal(t, "10", out[1].Name)
}

func TestRollingAverageLastN(t *testing.T) {
    now := d(2025, 6, 1)
    issues := completedSprints([]string{"s1", "s2", "s3", "s4"}, []int{2, 4, 6, 8}, d(2025, 5, 20))
    sprints := SprintVelocities(issues)
    avg := RollingAverageLastN(sprints, 3, now)
    assert.Equal(t, 3, avg.SprintsUsed)
    assert.InDelta(t, 6.0, avg.ByIssues, 1e-9)
}

func TestRollingAverageLastN_NoCompletedSprints(t *testing.T) {
    now := d(2025, 1, 1)
    sprints := []SprintVelocity{{Name: "future", DueDate: dp(2025, 2, 1)}}
    avg := RollingAverageLastN(sprints, 3, now)
    assert.Equal(t, 0, avg.SprintsUsed)
    assert.Zero(t, avg.ByIssues)
}

func TestTrend_ShortTermFiftyPercent(t *testing.T) {
    issues := completedSprints([]string{"s1", "s2", "s3"}, []int{4, 6, 9}, d(2025, 5, 20))
    sprints := SprintVelocities(issues)
    tr := Trend(sprints, "s3", domain.MetricIssues)
    assert.Equal(t, 50, tr.ShortTerm)
    // Fewer than four sprints of history leaves long term at zero.
    assert.Equal(t, 0, tr.LongTerm)
}

func TestTrend_LongTermWindow(t *testing.T) {
    issues := completedSprints(
        []string{"s1", "s2", "s3", "s4", "s5", "s6"},
        []int{2, 2, 2, 4, 4, 4},
        d(2025, 5, 20))
    sprints := SprintVelocities(issues)
    tr := Trend(sprints, "s6", domain.MetricIssues)
    // Recent (4,4,4) vs older (2,2,2): +100%.
    assert.Equal(t, 100, tr.LongTerm)
}

func TestTrend_UnknownSprint(t *testing.T) {
    assert.Equal(t, VelocityTrend{}, Trend(nil, "nope", domain.MetricIssues))
}

func TestTrend_ZeroPreviousVelocity(t *testing.T) {
    issues := completedSprints([]string{"s1", "s2"}, []int{0, 5}, d(2025, 5, 20))
    // 0-completed sprints produce no record, so seed the empty one by hand.
    sprints := append([]SprintVelocity{{Name: "s0", StartDate: dp(2025, 4, 1), DueDate: dp(2025, 4, 14)}}, SprintVelocities(issues)...)
    tr := Trend(sprints, sprints[1].Name, domain.MetricIssues)
    assert.Equal(t, 0, tr.ShortTerm)
}

func TestCurrentSprint_ContainingTodayWins(t *testing.T) {
    now := d(2025, 1, 20)
    sprints := []SprintVelocity{
        {Name: "past", StartDate: dp(2025, 1, 1), DueDate: dp(2025, 1, 14)},
        {Name: "live", StartDate: dp(2025, 1, 15), DueDate: dp(2025, 1, 28)},
    }
    assert.Equal(t, "live", CurrentSprint(sprints, now))
}

func TestCurrentSprint_MostRecentlyEnded(t *testing.T) {
    now := d(2025, 3, 1)
    sprints := []SprintVelocity{
        {Name: "old", StartDate: dp(2025, 1, 1), DueDate: dp(2025, 1, 14)},
        {Name: "newer", StartDate: dp(2025, 1, 15), DueDate: dp(2025, 1, 28)},
    }
    assert.Equal(t, "newer", CurrentSprint(sprints, now))
}

func TestCurrentSprint_OpenIssuesFallback(t *testing.T) {
    now := d(2025, 1, 1)
    sprints := []SprintVelocity{
        {Name: "3", OpenIssues: 1},
        {Name: "11", OpenIssues: 2},
        {Name: "closed-out", OpenIssues: 0},
    }
    assert.Equal(t, "11", CurrentSprint(sprints, now))
    assert.Equal(t, "", CurrentSprint(nil, now))
}
