/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package domain

import "fmt"

// InvariantError reports a snapshot or persisted document that violates a
// model invariant. The analytics pipeline never repairs bad input; the run
// fails with this error instead.
type InvariantError struct {
    Path   string
    Detail string
}

func (e InvariantError) Error() string { return fmt.Sprintf("invariant violated at %s: %s", e.Path, e.Detail) }

func invariant(path, format string, args ...any) error {
    return InvariantError{Path: path, Detail: fmt.Sprintf(format, args...)}
}

// Validate checks the model invariants over an assembled snapshot.
func (s Snapshot) Validate() error {
    for _, i := range s.Issues {
        p := fmt.Sprintf("issues[%d]", i.IID)
        if i.State != StateOpened && i.State != StateClosed {
            return invariant(p+".state", "unknown state %q", i.State)
        }
        if i.Weight != nil && *i.Weight < 0 {
            return invariant(p+".weight", "negative weight %d", *i.Weight)
        }
        if i.Closed() && i.ClosedAt != nil && i.ClosedAt.Before(i.CreatedAt) {
            return invariant(p+".closed_at", "close %s precedes creation %s", i.ClosedAt, i.CreatedAt)
        }
        if it := i.Iteration; it != nil && it.StartDate != nil && it.DueDate != nil && it.DueDate.Before(*it.StartDate) {
            return invariant(p+".iteration", "due %s precedes start %s", it.DueDate, it.StartDate)
        }
    }
    for idx, m := range s.Team {
        if m.WeeklyHours < 0 {
            return invariant(fmt.Sprintf("teamConfig.teamMembers[%d].weeklyCapacityHours", idx), "negative capacity %d", m.WeeklyHours)
        }
    }
    for idx, a := range s.Absences {
        if a.EndDate.Before(a.StartDate) {
            return invariant(fmt.Sprintf("absences[%d]", idx), "end %s precedes start %s", a.EndDate, a.StartDate)
        }
    }
    for idx, r := range s.Risks {
        p := fmt.Sprintf("risks[%d]", idx)
        if r.Probability < 1 || r.Probability > 3 {
            return invariant(p+".probability", "out of range: %d", r.Probability)
        }
        if r.Impact < 1 || r.Impact > 3 {
            return invariant(p+".impact", "out of range: %d", r.Impact)
        }
        switch r.Status {
        case RiskOpen, RiskMonitoring, RiskClosed:
        default:
            return invariant(p+".status", "unknown status %q", r.Status)
        }
    }
    for idx, c := range s.Communications {
        if err := c.Validate(); err != nil {
            return invariant(fmt.Sprintf("communications[%d]", idx), "%v", err)
        }
    }
    return nil
}

// Validate rejects unknown discriminators so a corrupted document fails the
// run instead of silently dropping entries.
func (c CommunicationEntry) Validate() error {
    switch c.Type {
    case CommEmail, CommDecision, CommMeetingNotes, CommIncident, CommScopeChange:
        return nil
    default:
        return fmt.Errorf("unknown communication type %q", c.Type)
    }
}
