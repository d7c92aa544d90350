/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "fmt"
    "strconv"
    "strings"

    "github.com/pulseboard-io/pulseboard/internal/analytics"
    "github.com/pulseboard-io/pulseboard/internal/domain"
)

// csvBuilder emits RFC 4180 rows with every field quoted and CRLF line
// endings, which is what the dashboard's spreadsheet consumers expect.
// encoding/csv is not used because it quotes only when required.
type csvBuilder struct {
    b strings.Builder
}

func (c *csvBuilder) row(fields ...string) {
    for i, f := range fields {
        if i > 0 { c.b.WriteByte(',') }
        c.b.WriteByte('"')
        c.b.WriteString(strings.ReplaceAll(f, `"`, `""`))
        c.b.WriteByte('"')
    }
    c.b.WriteString("\r\n")
}

func (c *csvBuilder) bytes() []byte { return []byte(c.b.String()) }

func itoa(v int) string { return strconv.Itoa(v) }

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }

// ExportCSV renders one export kind from the cached analytics result.
func (s *Service) ExportCSV(ctx context.Context, kind string) ([]byte, error) {
    r, err := s.Analytics(ctx)
    if err != nil { return nil, err }
    switch kind {
    case "velocity":
        return exportVelocity(r), nil
    case "capacity":
        return exportCapacity(r), nil
    case "insights":
        return exportInsights(r), nil
    case "dependencies":
        return exportDependencies(r), nil
    case "risks":
        return s.exportRisks(ctx)
    case "communications":
        return s.exportCommunications(ctx)
    default:
        return nil, fmt.Errorf("unknown export kind %q", kind)
    }
}

func exportVelocity(r *analytics.Result) []byte {
    var c csvBuilder
    c.row("Sprint", "Start Date", "Due Date", "Total Issues", "Completed Issues", "Total Points", "Completed Points", "Completion Rate (%)")
    for _, sv := range r.Sprints {
        start, due := "", ""
        if sv.StartDate != nil { start = analytics.DateKey(*sv.StartDate) }
        if sv.DueDate != nil { due = analytics.DateKey(*sv.DueDate) }
        c.row(sv.Name, start, due, itoa(sv.TotalIssues), itoa(sv.CompletedIssues), itoa(sv.TotalPoints), itoa(sv.CompletedPoints), itoa(sv.CompletionRate))
    }
    return c.bytes()
}

func exportCapacity(r *analytics.Result) []byte {
    var c csvBuilder
    c.row("Member", "Role", "Sprint Capacity (h)", "Absence (h)", "Available (h)", "Allocated (h)", "Utilization (%)", "Status")
    for _, m := range r.Capacity.Members {
        c.row(m.Name, m.Role, ftoa(m.SprintCapacity), ftoa(m.AbsenceHours), ftoa(m.AvailableCapacity), ftoa(m.AllocatedHours), itoa(m.Utilization), m.Status)
    }
    return c.bytes()
}

func exportInsights(r *analytics.Result) []byte {
    var c csvBuilder
    c.row("Severity", "Category", "Title", "Description", "Recommendation", "Confidence")
    for _, i := range r.Insights {
        c.row(i.Type, i.Category, i.Title, i.Description, i.Recommendation, i.Confidence)
    }
    return c.bytes()
}

func exportDependencies(r *analytics.Result) []byte {
    var c csvBuilder
    c.row("From", "To", "Relation")
    for _, e := range r.Dependencies.Edges {
        c.row(e.From, e.To, e.Relation)
    }
    return c.bytes()
}

// Risk and communication exports read the persisted registers, not the
// cached result; the result only carries their summaries.
func (s *Service) exportRisks(ctx context.Context) ([]byte, error) {
    risks, err := s.repo.GetRisks(ctx)
    if err != nil { return nil, err }
    var c csvBuilder
    c.row("Title", "Probability", "Impact", "Score", "Status", "Owner")
    for _, r := range risks {
        c.row(r.Title, itoa(r.Probability), itoa(r.Impact), itoa(r.Score()), r.Status, r.Owner)
    }
    return c.bytes(), nil
}

func (s *Service) exportCommunications(ctx context.Context) ([]byte, error) {
    entries, err := s.repo.GetCommunications(ctx)
    if err != nil { return nil, err }
    var c csvBuilder
    c.row("Date", "Type", "Priority", "Summary")
    for _, e := range entries {
        at := ""
        if t := e.EffectiveAt(); !t.IsZero() { at = analytics.DateKey(t) }
        c.row(at, e.Type, e.Priority, commSummary(e))
    }
    return c.bytes(), nil
}

func commSummary(e domain.CommunicationEntry) string {
    switch {
    case e.Email != nil:
        return e.Email.Subject
    case e.Decision != nil:
        return e.Decision.Title
    case e.Meeting != nil:
        return e.Meeting.Title
    case e.Incident != nil:
        return e.Incident.Title
    default:
        return ""
    }
}
