/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package tracker

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func testClient(t *testing.T, h http.HandlerFunc) *Client {
    t.Helper()
    srv := httptest.NewServer(h)
    t.Cleanup(srv.Close)
    return NewClient(Options{BaseURL: srv.URL, Token: "tok", PageSize: 2, Retries: 3}, zerolog.Nop())
}

func TestIssues_PaginatesUntilShortPage(t *testing.T) {
    var pages []string
    c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
        pages = append(pages, r.URL.Query().Get("page"))
        assert.Equal(t, "tok", r.Header.Get("PRIVATE-TOKEN"))
        switch r.URL.Query().Get("page") {
        case "1":
            fmt.Fprint(w, `[{"iid":1,"title":"a","state":"opened","created_at":"2025-01-02T10:00:00Z"},
                {"iid":2,"title":"b","state":"closed","created_at":"2025-01-02T10:00:00Z","closed_at":"2025-02-01T09:00:00Z"}]`)
        default:
            fmt.Fprint(w, `[{"iid":3,"title":"c","state":"opened","created_at":"2025-01-03T10:00:00Z","due_date":"2025-03-01"}]`)
        }
    })
    issues, err := c.Issues(context.Background(), 7)
    require.NoError(t, err)
    require.Len(t, issues, 3)
    assert.Equal(t, []string{"1", "2"}, pages)
    assert.True(t, issues[1].Closed())
    require.NotNil(t, issues[2].DueDate)
    assert.Equal(t, "2025-03-01", issues[2].DueDate.Format("2006-01-02"))
}

func TestIssues_WireMapping(t *testing.T) {
    c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
        fmt.Fprint(w, `[{
            "iid": 5, "title": "t", "state": "opened", "weight": 3,
            "labels": ["sprint::9"], "created_at": "2025-01-02T10:00:00Z",
            "assignee": {"id": 11, "username": "dana", "name": "Dana"},
            "iteration": {"id": 4, "title": "Sprint 9", "start_date": "2025-01-06", "due_date": "2025-01-17"},
            "milestone": {"id": 2, "title": "v2.0"},
            "epic": {"id": 40, "title": "the epic"},
            "blocking_issues": [6, 7]
        }]`)
    })
    issues, err := c.Issues(context.Background(), 7)
    require.NoError(t, err)
    require.Len(t, issues, 1)
    i := issues[0]
    assert.Equal(t, 3, i.Points())
    require.NotNil(t, i.Assignee)
    assert.Equal(t, "dana", i.Assignee.Username)
    require.NotNil(t, i.Iteration)
    assert.Equal(t, "Sprint 9", i.Iteration.Name)
    require.NotNil(t, i.Iteration.StartDate)
    assert.Equal(t, "v2.0", i.MilestoneTitle)
    require.NotNil(t, i.Epic)
    assert.Equal(t, int64(40), i.Epic.ID)
    assert.Equal(t, []int{6, 7}, i.BlockingIssues)
}

func TestDoJSON_RetriesServerErrors(t *testing.T) {
    attempts := 0
    c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
        attempts++
        if attempts < 3 {
            w.WriteHeader(http.StatusBadGateway)
            return
        }
        fmt.Fprint(w, `[]`)
    })
    _, err := c.Issues(context.Background(), 7)
    require.NoError(t, err)
    assert.Equal(t, 3, attempts)
}

func TestDoJSON_ClientErrorIsNotRetried(t *testing.T) {
    attempts := 0
    c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
        attempts++
        w.WriteHeader(http.StatusNotFound)
        fmt.Fprint(w, `{"message":"404 Not Found"}`)
    })
    _, err := c.Issues(context.Background(), 7)
    var apiErr *APIError
    require.ErrorAs(t, err, &apiErr)
    assert.Equal(t, http.StatusNotFound, apiErr.Status)
    assert.Equal(t, 1, attempts)
}

func TestDoJSON_ExhaustedRetriesReturnLastError(t *testing.T) {
    c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusTooManyRequests)
    })
    _, err := c.Issues(context.Background(), 7)
    var apiErr *APIError
    require.ErrorAs(t, err, &apiErr)
    assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
}

func TestIssues_ContextCancelledBetweenPages(t *testing.T) {
    ctx, cancel := context.WithCancel(context.Background())
    c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
        cancel()
        fmt.Fprint(w, `[{"iid":1,"title":"a","state":"opened","created_at":"2025-01-02T10:00:00Z"},
            {"iid":2,"title":"b","state":"opened","created_at":"2025-01-02T10:00:00Z"}]`)
    })
    _, err := c.Issues(ctx, 7)
    assert.ErrorIs(t, err, context.Canceled)
}

func TestReassign_SendsAssigneeIDs(t *testing.T) {
    var gotPath string
    var gotBody map[string][]int64
    c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
        gotPath = r.URL.Path
        assert.Equal(t, http.MethodPut, r.Method)
        require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
        w.WriteHeader(http.StatusOK)
    })
    require.NoError(t, c.Reassign(context.Background(), 7, 42, 11))
    assert.Equal(t, "/projects/7/issues/42", gotPath)
    assert.Equal(t, []int64{11}, gotBody["assignee_ids"])
}

func TestEpics_EmptyGroupPathSkipsFetch(t *testing.T) {
    c := NewClient(Options{BaseURL: "http://localhost:1"}, zerolog.Nop())
    epics, err := c.Epics(context.Background(), "")
    require.NoError(t, err)
    assert.Nil(t, epics)
}

func TestParseDayAndStamp(t *testing.T) {
    d := parseDay("2025-03-09")
    require.NotNil(t, d)
    assert.Equal(t, time.Local, d.Location())
    assert.Nil(t, parseDay(""))
    assert.Nil(t, parseDay("not-a-date"))

    s := parseStamp("2025-03-09T23:30:00Z")
    require.NotNil(t, s)
    assert.Nil(t, parseStamp(""))
}
