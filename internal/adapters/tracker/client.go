/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package tracker

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strings"
    "time"

    "github.com/pulseboard-io/pulseboard/internal/domain"
    "github.com/rs/zerolog"
)

// Client talks to the issue tracker's REST API. The base URL includes the
// API prefix; paths below are appended verbatim.
type Client struct {
    baseURL string
    token   string
    http    *http.Client
    log     zerolog.Logger
    retries int
    perPage int
}

// APIError carries the status code and response body of a failed call so
// partial-failure reports can surface them as data.
type APIError struct {
    Status int
    Body   string
}

func (e *APIError) Error() string { return fmt.Sprintf("tracker: status %d: %s", e.Status, e.Body) }

type Options struct {
    BaseURL  string
    Token    string
    Timeout  time.Duration
    Retries  int
    PageSize int
}

func NewClient(opts Options, log zerolog.Logger) *Client {
    if opts.Retries <= 0 { opts.Retries = 3 }
    if opts.PageSize <= 0 { opts.PageSize = 100 }
    if opts.Timeout <= 0 { opts.Timeout = 15 * time.Second }
    return &Client{
        baseURL: strings.TrimRight(opts.BaseURL, "/"),
        token:   opts.Token,
        http:    &http.Client{Timeout: opts.Timeout},
        log:     log,
        retries: opts.Retries,
        perPage: opts.PageSize,
    }
}

// wire shapes: dates arrive as YYYY-MM-DD strings, timestamps as ISO 8601.
type wireUser struct {
    ID        int64  `json:"id"`
    Username  string `json:"username"`
    Name      string `json:"name"`
    AvatarURL string `json:"avatar_url"`
}

type wireIteration struct {
    ID        int64  `json:"id"`
    Title     string `json:"title"`
    StartDate string `json:"start_date"`
    DueDate   string `json:"due_date"`
}

type wireMilestone struct {
    ID        int64  `json:"id"`
    Title     string `json:"title"`
    StartDate string `json:"start_date"`
    DueDate   string `json:"due_date"`
    State     string `json:"state"`
}

type wireEpicRef struct {
    ID    int64  `json:"id"`
    Title string `json:"title"`
}

type wireIssue struct {
    IID            int            `json:"iid"`
    Title          string         `json:"title"`
    State          string         `json:"state"`
    Weight         *int           `json:"weight"`
    Labels         []string       `json:"labels"`
    Assignee       *wireUser      `json:"assignee"`
    Iteration      *wireIteration `json:"iteration"`
    Milestone      *wireMilestone `json:"milestone"`
    Epic           *wireEpicRef   `json:"epic"`
    CreatedAt      string         `json:"created_at"`
    ClosedAt       string         `json:"closed_at"`
    DueDate        string         `json:"due_date"`
    Description    string         `json:"description"`
    BlockingIssues []int          `json:"blocking_issues"`
}

type wireEpic struct {
    ID          int64    `json:"id"`
    Title       string   `json:"title"`
    State       string   `json:"state"`
    DueDate     string   `json:"due_date"`
    Description string   `json:"description"`
    Labels      []string `json:"labels"`
}

type wireNote struct {
    Body string `json:"body"`
}

func parseDay(s string) *time.Time {
    if s == "" { return nil }
    t, err := time.ParseInLocation("2006-01-02", s, time.Local)
    if err != nil { return nil }
    return &t
}

func parseStamp(s string) *time.Time {
    if s == "" { return nil }
    for _, l := range []string{time.RFC3339Nano, time.RFC3339} {
        if t, err := time.Parse(l, s); err == nil { return &t }
    }
    return nil
}

// doJSON performs one request with bounded retry and exponential backoff on
// 429/5xx. Non-retryable failures return an *APIError.
func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
    if c.baseURL == "" { return errors.New("tracker: empty baseURL") }
    var payload []byte
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil { return err }
        payload = b
    }
    var lastErr error
    backoff := 500 * time.Millisecond
    for attempt := 0; attempt < c.retries; attempt++ {
        if attempt > 0 {
            select {
            case <-ctx.Done():
                return ctx.Err()
            case <-time.After(backoff):
            }
            backoff *= 2
        }
        var r io.Reader
        if payload != nil { r = bytes.NewReader(payload) }
        req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
        if err != nil { return err }
        if payload != nil { req.Header.Set("Content-Type", "application/json") }
        if c.token != "" { req.Header.Set("PRIVATE-TOKEN", c.token) }
        resp, err := c.http.Do(req)
        if err != nil {
            lastErr = err
            continue
        }
        b, _ := io.ReadAll(resp.Body)
        resp.Body.Close()
        if resp.StatusCode >= 300 {
            apiErr := &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
            if resp.StatusCode == 429 || resp.StatusCode >= 500 {
                lastErr = apiErr
                continue
            }
            return apiErr
        }
        if out == nil { return nil }
        return json.Unmarshal(b, out)
    }
    return lastErr
}

// Issues pages through the project's issues; the context is checked between
// pages so cancellation is cooperative.
func (c *Client) Issues(ctx context.Context, projectID int64) ([]domain.Issue, error) {
    var out []domain.Issue
    for page := 1; ; page++ {
        if err := ctx.Err(); err != nil { return nil, err }
        var batch []wireIssue
        path := fmt.Sprintf("/projects/%d/issues?per_page=%d&page=%d&scope=all", projectID, c.perPage, page)
        if err := c.doJSON(ctx, http.MethodGet, path, nil, &batch); err != nil {
            return nil, fmt.Errorf("issues page %d: %w", page, err)
        }
        if len(batch) == 0 { break }
        for _, w := range batch { out = append(out, c.toIssue(w)) }
        if len(batch) < c.perPage { break }
    }
    return out, nil
}

func (c *Client) toIssue(w wireIssue) domain.Issue {
    i := domain.Issue{
        IID:            w.IID,
        Title:          w.Title,
        State:          w.State,
        Weight:         w.Weight,
        Labels:         w.Labels,
        Description:    w.Description,
        BlockingIssues: w.BlockingIssues,
        DueDate:        parseDay(w.DueDate),
    }
    if t := parseStamp(w.CreatedAt); t != nil { i.CreatedAt = *t }
    i.ClosedAt = parseStamp(w.ClosedAt)
    if w.Assignee != nil {
        i.Assignee = &domain.User{ID: w.Assignee.ID, Username: w.Assignee.Username, Name: w.Assignee.Name, AvatarURL: w.Assignee.AvatarURL}
    }
    if w.Iteration != nil {
        i.Iteration = &domain.Iteration{
            ID:        w.Iteration.ID,
            Name:      w.Iteration.Title,
            StartDate: parseDay(w.Iteration.StartDate),
            DueDate:   parseDay(w.Iteration.DueDate),
        }
    }
    if w.Milestone != nil { i.MilestoneTitle = w.Milestone.Title }
    if w.Epic != nil { i.Epic = &domain.EpicRef{ID: w.Epic.ID, Title: w.Epic.Title} }
    return i
}

// Notes fetches the comment bodies for one issue, first page only; the
// dependency miner only needs recent mentions.
func (c *Client) Notes(ctx context.Context, projectID int64, iid int) ([]domain.Note, error) {
    var batch []wireNote
    path := fmt.Sprintf("/projects/%d/issues/%d/notes?per_page=%d", projectID, iid, c.perPage)
    if err := c.doJSON(ctx, http.MethodGet, path, nil, &batch); err != nil { return nil, err }
    out := make([]domain.Note, 0, len(batch))
    for _, n := range batch { out = append(out, domain.Note{Body: n.Body}) }
    return out, nil
}

func (c *Client) Epics(ctx context.Context, groupPath string) ([]domain.Epic, error) {
    if groupPath == "" { return nil, nil }
    var out []domain.Epic
    for page := 1; ; page++ {
        if err := ctx.Err(); err != nil { return nil, err }
        var batch []wireEpic
        path := fmt.Sprintf("/groups/%s/epics?per_page=%d&page=%d", groupPath, c.perPage, page)
        if err := c.doJSON(ctx, http.MethodGet, path, nil, &batch); err != nil {
            return nil, fmt.Errorf("epics page %d: %w", page, err)
        }
        if len(batch) == 0 { break }
        for _, w := range batch {
            out = append(out, domain.Epic{
                ID: w.ID, Title: w.Title, State: w.State,
                DueDate: parseDay(w.DueDate), Description: w.Description, Labels: w.Labels,
            })
        }
        if len(batch) < c.perPage { break }
    }
    return out, nil
}

func (c *Client) Milestones(ctx context.Context, projectID int64) ([]domain.Milestone, error) {
    var out []domain.Milestone
    for page := 1; ; page++ {
        if err := ctx.Err(); err != nil { return nil, err }
        var batch []wireMilestone
        path := fmt.Sprintf("/projects/%d/milestones?per_page=%d&page=%d", projectID, c.perPage, page)
        if err := c.doJSON(ctx, http.MethodGet, path, nil, &batch); err != nil {
            return nil, fmt.Errorf("milestones page %d: %w", page, err)
        }
        if len(batch) == 0 { break }
        for _, w := range batch {
            out = append(out, domain.Milestone{
                ID: w.ID, Title: w.Title, State: w.State,
                StartDate: parseDay(w.StartDate), DueDate: parseDay(w.DueDate),
            })
        }
        if len(batch) < c.perPage { break }
    }
    return out, nil
}

// Reassign sets the single assignee of an issue.
func (c *Client) Reassign(ctx context.Context, projectID int64, iid int, userID int64) error {
    path := fmt.Sprintf("/projects/%d/issues/%d", projectID, iid)
    body := map[string][]int64{"assignee_ids": {userID}}
    return c.doJSON(ctx, http.MethodPut, path, body, nil)
}
