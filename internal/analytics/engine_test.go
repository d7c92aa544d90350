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

func TestRun_EmptySnapshotIsWellFormed(t *testing.T) {
    now := d(2025, 1, 1)
    r, err := Run(Input{Snapshot: domain.Snapshot{}, Now: now})
    require.NoError(t, err)

    assert.Equal(t, now, r.GeneratedAt)
    assert.Empty(t, r.Sprints)
    assert.Zero(t, r.AvgVelocity.ByIssues)
    assert.Equal(t, "", r.CurrentSprint)
    assert.Empty(t, r.Burndown.Ideal)
    assert.Empty(t, r.Burnup.Points)
    assert.Equal(t, Forecast{}, r.Forecast)
    assert.Equal(t, "red", r.Health.Status)
    assert.Zero(t, r.Health.Total)
    assert.Empty(t, r.Dependencies.Nodes)
    assert.NotNil(t, r.Dependencies.Cycles)
    assert.NotNil(t, r.Dependencies.CriticalPath)
    assert.Empty(t, r.Capacity.Members)
    assert.NotNil(t, r.Insights)
}

func TestRun_IsPureGivenFixedNow(t *testing.T) {
    now := d(2025, 2, 1)
    start, due := d(2025, 1, 6), d(2025, 1, 17)
    closed := dp(2025, 1, 16)
    snap := domain.Snapshot{
        Issues: []domain.Issue{
            {IID: 1, Title: "a", State: domain.StateClosed, CreatedAt: start, ClosedAt: closed,
                Iteration: &domain.Iteration{Name: "s1", StartDate: &start, DueDate: &due}},
            {IID: 2, Title: "b", State: domain.StateOpened, CreatedAt: start,
                Iteration: &domain.Iteration{Name: "s1", StartDate: &start, DueDate: &due}},
        },
    }
    a, err := Run(Input{Snapshot: snap, Now: now})
    require.NoError(t, err)
    b, err := Run(Input{Snapshot: snap, Now: now})
    require.NoError(t, err)
    assert.Equal(t, a, b)
}

func TestRun_InvalidSnapshotFails(t *testing.T) {
    w := -1
    snap := domain.Snapshot{Issues: []domain.Issue{
        {IID: 1, State: domain.StateOpened, CreatedAt: d(2025, 1, 1), Weight: &w},
    }}
    _, err := Run(Input{Snapshot: snap, Now: d(2025, 1, 1)})
    var inv domain.InvariantError
    require.ErrorAs(t, err, &inv)
    assert.Equal(t, "issues[1].weight", inv.Path)
}

func TestDeriveHealthStats(t *testing.T) {
    now := d(2025, 3, 10)
    issues := []domain.Issue{
        {IID: 1, State: domain.StateClosed, CreatedAt: d(2025, 1, 1), ClosedAt: dp(2025, 2, 1)},
        {IID: 2, State: domain.StateOpened, CreatedAt: d(2025, 1, 1), Labels: []string{"blocker"}},
        {IID: 3, State: domain.StateOpened, CreatedAt: d(2025, 1, 1), DueDate: dp(2025, 3, 1)},
        {IID: 4, State: domain.StateOpened, CreatedAt: d(2025, 1, 1), DueDate: dp(2025, 3, 14)},
        {IID: 5, State: domain.StateOpened, CreatedAt: d(2025, 1, 1), Labels: []string{"at-risk"}},
    }
    st := deriveHealthStats(issues, now)
    assert.Equal(t, HealthStats{Total: 5, Closed: 1, Open: 4, Blockers: 1, Overdue: 1, AtRisk: 2}, st)
}

func TestDeriveHealthStats_OverdueIsNotAlsoAtRisk(t *testing.T) {
    now := d(2025, 3, 10)
    issues := []domain.Issue{
        {IID: 1, State: domain.StateOpened, CreatedAt: d(2025, 1, 1), DueDate: dp(2025, 3, 1)},
    }
    st := deriveHealthStats(issues, now)
    assert.Equal(t, 1, st.Overdue)
    assert.Equal(t, 0, st.AtRisk)
}

func TestEpicRollups(t *testing.T) {
    w := 3
    issues := []domain.Issue{
        {IID: 1, State: domain.StateClosed, CreatedAt: d(2025, 1, 1), Weight: &w, Epic: &domain.EpicRef{ID: 7}},
        {IID: 2, State: domain.StateOpened, CreatedAt: d(2025, 1, 1), Weight: &w, Epic: &domain.EpicRef{ID: 7}},
        {IID: 3, State: domain.StateOpened, CreatedAt: d(2025, 1, 1), Epic: &domain.EpicRef{ID: 99}},
    }
    epics := []domain.Epic{{ID: 7, Title: "e7"}}
    out := epicRollups(issues, epics)
    require.Len(t, out, 1)
    assert.Equal(t, EpicRollup{EpicID: 7, Title: "e7", TotalIssues: 2, ClosedIssues: 1, TotalPoints: 6, CompletedPoints: 3}, out[0])
}

func TestRiskSummary(t *testing.T) {
    risks := []domain.Risk{
        {Probability: 3, Impact: 3, Status: domain.RiskOpen},
        {Probability: 2, Impact: 3, Status: domain.RiskOpen},
        {Probability: 1, Impact: 2, Status: domain.RiskOpen},
        {Probability: 3, Impact: 3, Status: domain.RiskMonitoring},
        {Probability: 3, Impact: 3, Status: domain.RiskClosed},
    }
    rs := riskSummary(risks)
    assert.Equal(t, RiskSummary{Open: 3, Monitoring: 1, Closed: 1, HighOpen: 2, TopScore: 9}, rs)
}

func TestCommTimeline_GroupsByLocalDay(t *testing.T) {
    day := time.Date(2025, 4, 2, 9, 0, 0, 0, time.Local)
    late := time.Date(2025, 4, 2, 23, 45, 0, 0, time.Local)
    created := time.Date(2025, 4, 1, 8, 0, 0, 0, time.Local)
    entries := []domain.CommunicationEntry{
        {ID: "1", Type: domain.CommEmail, SentAt: day},
        {ID: "2", Type: domain.CommDecision, SentAt: late},
        {ID: "3", Type: domain.CommEmail, CreatedAt: &created},
        {ID: "4", Type: domain.CommEmail},
    }
    out := commTimeline(entries)
    require.Len(t, out, 2)
    assert.Equal(t, "2025-04-01", out[0].Date)
    assert.Equal(t, 1, out[0].Count)
    assert.Equal(t, "2025-04-02", out[1].Date)
    assert.Equal(t, 2, out[1].Count)
    assert.Equal(t, map[string]int{domain.CommEmail: 1, domain.CommDecision: 1}, out[1].ByType)
}
