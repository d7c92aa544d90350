/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
    "context"
    "encoding/json"
    "fmt"
    "strings"
    "sync"
    "time"

    "github.com/google/uuid"
    "github.com/pulseboard-io/pulseboard/internal/analytics"
    "github.com/pulseboard-io/pulseboard/internal/config"
    "github.com/pulseboard-io/pulseboard/internal/domain"
    "github.com/pulseboard-io/pulseboard/internal/repo"
    "github.com/rs/zerolog"
)

type TrackerClient interface {
    Issues(ctx context.Context, projectID int64) ([]domain.Issue, error)
    Notes(ctx context.Context, projectID int64, iid int) ([]domain.Note, error)
    Epics(ctx context.Context, groupPath string) ([]domain.Epic, error)
    Milestones(ctx context.Context, projectID int64) ([]domain.Milestone, error)
    Reassign(ctx context.Context, projectID int64, iid int, userID int64) error
}

// store is the slice of the repository this service reads and writes.
type store interface {
    GetDocument(ctx context.Context, key string) (json.RawMessage, error)
    PutDocument(ctx context.Context, key string, doc json.RawMessage) error
    GetProjectConfig(ctx context.Context) (domain.ProjectConfig, error)
    SaveProjectConfig(ctx context.Context, v domain.ProjectConfig) error
    GetTeamConfig(ctx context.Context) (repo.TeamConfig, error)
    SaveTeamConfig(ctx context.Context, v repo.TeamConfig) error
    GetAbsences(ctx context.Context) ([]domain.Absence, error)
    SaveAbsences(ctx context.Context, v []domain.Absence) error
    GetRisks(ctx context.Context) ([]domain.Risk, error)
    SaveRisks(ctx context.Context, v []domain.Risk) error
    GetCommunications(ctx context.Context) ([]domain.CommunicationEntry, error)
    SaveCommunications(ctx context.Context, v []domain.CommunicationEntry) error
    GetVelocityConfig(ctx context.Context) (domain.VelocityConfig, error)
    SaveVelocityConfig(ctx context.Context, v domain.VelocityConfig) error
    SaveUserPreferences(ctx context.Context, v domain.UserPreferences) error
}

// Service assembles snapshots from the tracker and persisted state, runs
// the analytics pipeline and caches the latest result. The analytics core
// itself is pure; the mutex below guards only this cache.
type Service struct {
    cfg     config.Config
    log     zerolog.Logger
    repo    store
    tracker TrackerClient

    mu   sync.RWMutex
    last *analytics.Result
}

func New(cfg config.Config, log zerolog.Logger, r store, tracker TrackerClient) *Service {
    return &Service{cfg: cfg, log: log, repo: r, tracker: tracker}
}

// projectConfig resolves the persisted config document, seeded from the
// environment when the document is empty.
func (s *Service) projectConfig(ctx context.Context) (domain.ProjectConfig, error) {
    pc, err := s.repo.GetProjectConfig(ctx)
    if err != nil { return pc, err }
    if pc.BaseURL == "" { pc.BaseURL = s.cfg.TrackerBaseURL }
    if pc.ProjectID == 0 { pc.ProjectID = s.cfg.ProjectID }
    if pc.GroupPath == "" { pc.GroupPath = s.cfg.GroupPath }
    if pc.AccessToken == "" { pc.AccessToken = s.cfg.TrackerToken }
    return pc, nil
}

// RefreshSnapshot fetches the tracker corpus, assembles a snapshot with the
// persisted planning state and runs the analytics pipeline. The finished
// result replaces the cache atomically.
func (s *Service) RefreshSnapshot(ctx context.Context) (result *analytics.Result, err error) {
    started := time.Now()
    defer func() {
        refreshSeconds.Observe(time.Since(started).Seconds())
        if err != nil {
            refreshTotal.WithLabelValues("error").Inc()
        } else {
            refreshTotal.WithLabelValues("ok").Inc()
        }
    }()
    pc, err := s.projectConfig(ctx)
    if err != nil { return nil, fmt.Errorf("load config: %w", err) }

    issues, err := s.tracker.Issues(ctx, pc.ProjectID)
    if err != nil { return nil, fmt.Errorf("fetch issues: %w", err) }
    epics, err := s.tracker.Epics(ctx, pc.GroupPath)
    if err != nil { return nil, fmt.Errorf("fetch epics: %w", err) }
    milestones, err := s.tracker.Milestones(ctx, pc.ProjectID)
    if err != nil { return nil, fmt.Errorf("fetch milestones: %w", err) }

    s.attachNotes(ctx, pc.ProjectID, issues)

    if pc.FilterToYear {
        year := time.Now().Year()
        kept := issues[:0]
        for _, i := range issues {
            if i.CreatedAt.Year() == year { kept = append(kept, i) }
        }
        issues = kept
    }

    snap, err := s.assembleSnapshot(ctx, issues, epics, milestones)
    if err != nil { return nil, err }

    res, err := analytics.Run(analytics.Input{Snapshot: snap, Now: time.Now()})
    if err != nil { return nil, err }

    s.mu.Lock()
    s.last = &res
    s.mu.Unlock()
    s.log.Info().
        Int("issues", len(issues)).
        Int("epics", len(epics)).
        Dur("took", time.Since(started)).
        Msg("snapshot refreshed")
    return &res, nil
}

// attachNotes pulls comment bodies for open issues with a bounded worker
// pool; note failures are logged and skipped, they only feed the
// dependency miner's "mentioned in" edges.
func (s *Service) attachNotes(ctx context.Context, projectID int64, issues []domain.Issue) {
    type job struct{ idx, iid int }
    jobs := make(chan job)
    var wg sync.WaitGroup
    workers := 4
    for w := 0; w < workers; w++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            for j := range jobs {
                notes, err := s.tracker.Notes(ctx, projectID, j.iid)
                if err != nil {
                    s.log.Warn().Err(err).Int("iid", j.iid).Msg("notes fetch failed")
                    continue
                }
                issues[j.idx].Notes = notes
            }
        }()
    }
    for idx, i := range issues {
        if i.Closed() { continue }
        jobs <- job{idx: idx, iid: i.IID}
    }
    close(jobs)
    wg.Wait()
}

func (s *Service) assembleSnapshot(ctx context.Context, issues []domain.Issue, epics []domain.Epic, milestones []domain.Milestone) (domain.Snapshot, error) {
    var snap domain.Snapshot
    team, err := s.repo.GetTeamConfig(ctx)
    if err != nil { return snap, fmt.Errorf("load teamConfig: %w", err) }
    absences, err := s.repo.GetAbsences(ctx)
    if err != nil { return snap, fmt.Errorf("load absences: %w", err) }
    risks, err := s.repo.GetRisks(ctx)
    if err != nil { return snap, fmt.Errorf("load risks: %w", err) }
    comms, err := s.repo.GetCommunications(ctx)
    if err != nil { return snap, fmt.Errorf("load communications: %w", err) }
    vcfg, err := s.repo.GetVelocityConfig(ctx)
    if err != nil { return snap, fmt.Errorf("load velocityConfig: %w", err) }

    snap = domain.Snapshot{
        Issues:         issues,
        Epics:          epics,
        Milestones:     milestones,
        Team:           team.TeamMembers,
        Absences:       absences,
        Risks:          risks,
        Communications: comms,
        Velocity:       vcfg,
        FetchedAt:      time.Now(),
    }
    return snap, nil
}

// Analytics returns the cached result, refreshing once when nothing has
// been fetched yet.
func (s *Service) Analytics(ctx context.Context) (*analytics.Result, error) {
    s.mu.RLock()
    last := s.last
    s.mu.RUnlock()
    if last != nil { return last, nil }
    return s.RefreshSnapshot(ctx)
}

type ReassignRequest struct {
    IID    int   `json:"iid"`
    UserID int64 `json:"userId"`
}

type ReassignFailure struct {
    IID   int    `json:"iid"`
    Error string `json:"error"`
}

type ReassignReport struct {
    Successful []int             `json:"successful"`
    Failed     []ReassignFailure `json:"failed"`
}

// BatchReassign applies the requested assignee changes one call at a time
// with a per-call timeout. Partial failure is a data value; successful
// writes are never rolled back.
func (s *Service) BatchReassign(ctx context.Context, reqs []ReassignRequest) (ReassignReport, error) {
    report := ReassignReport{Successful: []int{}, Failed: []ReassignFailure{}}
    pc, err := s.projectConfig(ctx)
    if err != nil { return report, err }
    for _, r := range reqs {
        if err := ctx.Err(); err != nil { return report, err }
        callCtx, cancel := context.WithTimeout(ctx, s.cfg.ReassignTimeout)
        err := s.tracker.Reassign(callCtx, pc.ProjectID, r.IID, r.UserID)
        cancel()
        if err != nil {
            reassignTotal.WithLabelValues("error").Inc()
            report.Failed = append(report.Failed, ReassignFailure{IID: r.IID, Error: err.Error()})
            continue
        }
        reassignTotal.WithLabelValues("ok").Inc()
        report.Successful = append(report.Successful, r.IID)
    }
    return report, nil
}

func (s *Service) GetDocument(ctx context.Context, key string) (json.RawMessage, error) {
    return s.repo.GetDocument(ctx, key)
}

// PutDocument validates the document against its key's schema before the
// whole-document overwrite, minting ids for new risks and communications.
func (s *Service) PutDocument(ctx context.Context, key string, doc json.RawMessage) error {
    switch key {
    case repo.KeyTeamConfig:
        var t repo.TeamConfig
        if err := strictUnmarshal(doc, &t); err != nil { return err }
        for _, m := range t.TeamMembers {
            if m.WeeklyHours < 0 { return domain.InvariantError{Path: "teamConfig", Detail: "negative weekly capacity"} }
        }
        return s.repo.SaveTeamConfig(ctx, t)
    case repo.KeyAbsences:
        var a []domain.Absence
        if err := strictUnmarshal(doc, &a); err != nil { return err }
        for _, x := range a {
            if x.EndDate.Before(x.StartDate) { return domain.InvariantError{Path: "absences", Detail: "end precedes start"} }
        }
        return s.repo.SaveAbsences(ctx, a)
    case repo.KeyRisks:
        var v []domain.Risk
        if err := strictUnmarshal(doc, &v); err != nil { return err }
        for i := range v {
            if v[i].ID == "" { v[i].ID = uuid.NewString() }
            if v[i].Probability < 1 || v[i].Probability > 3 || v[i].Impact < 1 || v[i].Impact > 3 {
                return domain.InvariantError{Path: "risks", Detail: "probability/impact out of range"}
            }
        }
        return s.repo.SaveRisks(ctx, v)
    case repo.KeyCommunications:
        var v []domain.CommunicationEntry
        if err := strictUnmarshal(doc, &v); err != nil { return err }
        for i := range v {
            if v[i].ID == "" { v[i].ID = uuid.NewString() }
            if err := v[i].Validate(); err != nil {
                return domain.InvariantError{Path: "communications", Detail: err.Error()}
            }
        }
        return s.repo.SaveCommunications(ctx, v)
    case repo.KeyVelocityConfig:
        var v domain.VelocityConfig
        if err := strictUnmarshal(doc, &v); err != nil { return err }
        switch v.Mode {
        case domain.VelocityModeStatic, domain.VelocityModeDynamic:
        default:
            return domain.InvariantError{Path: "velocityConfig.mode", Detail: fmt.Sprintf("unknown mode %q", v.Mode)}
        }
        switch v.MetricType {
        case domain.MetricIssues, domain.MetricPoints:
        default:
            return domain.InvariantError{Path: "velocityConfig.metricType", Detail: fmt.Sprintf("unknown metric %q", v.MetricType)}
        }
        return s.repo.SaveVelocityConfig(ctx, v)
    case repo.KeyConfig:
        var v domain.ProjectConfig
        if err := strictUnmarshal(doc, &v); err != nil { return err }
        return s.repo.SaveProjectConfig(ctx, v)
    case repo.KeyUserPreferences:
        var v domain.UserPreferences
        if err := strictUnmarshal(doc, &v); err != nil { return err }
        return s.repo.SaveUserPreferences(ctx, v)
    default:
        return s.repo.PutDocument(ctx, key, doc)
    }
}

func strictUnmarshal(doc json.RawMessage, out any) error {
    dec := json.NewDecoder(strings.NewReader(string(doc)))
    dec.DisallowUnknownFields()
    return dec.Decode(out)
}
