/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package analytics

import (
    "regexp"
    "strings"
    "time"

    "github.com/pulseboard-io/pulseboard/internal/domain"
)

const sprintLabelPrefix = "sprint::"

var legacySprintRe = regexp.MustCompile(`(?i)^sprint\s+(\d+)$`)

// ExtractSprint resolves the sprint name for an issue. The iteration object
// wins when it carries a name; otherwise the first sprint::<token> label or a
// legacy "Sprint <N>" label is used. Returns "" when no sprint is assigned.
// Numeric legacy names stay strings so ordering stays consistent downstream.
func ExtractSprint(labels []string, iter *domain.Iteration) string {
    if iter != nil && strings.TrimSpace(iter.Name) != "" {
        return strings.TrimSpace(iter.Name)
    }
    for _, l := range labels {
        if strings.HasPrefix(l, sprintLabelPrefix) {
            return strings.TrimPrefix(l, sprintLabelPrefix)
        }
    }
    for _, l := range labels {
        if m := legacySprintRe.FindStringSubmatch(strings.TrimSpace(l)); m != nil {
            return m[1]
        }
    }
    return ""
}

// WorkingDaysBetween counts weekdays (Mon-Fri) in the inclusive interval,
// using local date components.
func WorkingDaysBetween(start, end time.Time) int {
    s := NormalizeDayStart(start)
    e := NormalizeDayStart(end)
    if e.Before(s) { return 0 }
    days := 0
    for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
        wd := d.Weekday()
        if wd != time.Saturday && wd != time.Sunday { days++ }
    }
    return days
}

// DateKey renders the canonical YYYY-MM-DD join key from local date
// components. Never derive day keys from UTC ISO prefixes; near-midnight
// instants land on the wrong day.
func DateKey(t time.Time) string {
    return t.Format("2006-01-02")
}

// NormalizeDayStart zeroes the time component in local time.
func NormalizeDayStart(t time.Time) time.Time {
    return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NormalizeDayEnd saturates the time component in local time.
func NormalizeDayEnd(t time.Time) time.Time {
    return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 999999999, t.Location())
}

// daysBetween is the calendar-day span between two instants, ignoring the
// time of day. Both endpoints are rebuilt as UTC midnights from their local
// date components so DST transitions cannot shorten or stretch a day.
func daysBetween(start, end time.Time) int {
    s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
    e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
    return int(e.Sub(s).Hours() / 24)
}
