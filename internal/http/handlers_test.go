/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"

    "github.com/gin-gonic/gin"
    "github.com/pulseboard-io/pulseboard/internal/adapters/tracker"
    "github.com/pulseboard-io/pulseboard/internal/analytics"
    "github.com/pulseboard-io/pulseboard/internal/config"
    "github.com/pulseboard-io/pulseboard/internal/domain"
    "github.com/pulseboard-io/pulseboard/internal/services"
    "github.com/rs/zerolog"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

type stubService struct {
    result *analytics.Result
    err    error
    docs   map[string]json.RawMessage
    putErr error
}

func (s *stubService) Analytics(context.Context) (*analytics.Result, error) {
    return s.result, s.err
}

func (s *stubService) RefreshSnapshot(context.Context) (*analytics.Result, error) {
    return s.result, s.err
}

func (s *stubService) BatchReassign(_ context.Context, reqs []services.ReassignRequest) (services.ReassignReport, error) {
    report := services.ReassignReport{Successful: []int{}, Failed: []services.ReassignFailure{}}
    for _, r := range reqs { report.Successful = append(report.Successful, r.IID) }
    return report, s.err
}

func (s *stubService) GetDocument(_ context.Context, key string) (json.RawMessage, error) {
    return s.docs[key], s.err
}

func (s *stubService) PutDocument(_ context.Context, key string, doc json.RawMessage) error {
    if s.putErr != nil { return s.putErr }
    if s.docs == nil { s.docs = map[string]json.RawMessage{} }
    s.docs[key] = doc
    return nil
}

func (s *stubService) ExportCSV(context.Context, string) ([]byte, error) {
    return []byte(`"a","b"` + "\r\n"), s.err
}

func testRouter(svc *stubService) *gin.Engine {
    return NewRouter(config.Config{AppEnv: "test"}, zerolog.Nop(), svc)
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(method, path, strings.NewReader(body))
    if body != "" { req.Header.Set("Content-Type", "application/json") }
    w := httptest.NewRecorder()
    r.ServeHTTP(w, req)
    return w
}

func TestHealthz(t *testing.T) {
    w := do(testRouter(&stubService{result: &analytics.Result{}}), http.MethodGet, "/healthz", "")
    assert.Equal(t, http.StatusOK, w.Code)
}

func TestResult_ServesFullAnalytics(t *testing.T) {
    svc := &stubService{result: &analytics.Result{CurrentSprint: "s4"}}
    w := do(testRouter(svc), http.MethodGet, "/api/analytics", "")
    require.Equal(t, http.StatusOK, w.Code)
    var got map[string]any
    require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
    assert.Equal(t, "s4", got["currentSprint"])
}

func TestVelocitySection(t *testing.T) {
    svc := &stubService{result: &analytics.Result{
        Sprints:       []analytics.SprintVelocity{{Name: "s1"}},
        CurrentSprint: "s1",
    }}
    w := do(testRouter(svc), http.MethodGet, "/api/analytics/velocity", "")
    require.Equal(t, http.StatusOK, w.Code)
    var got map[string]any
    require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
    assert.Contains(t, got, "velocity")
    assert.Equal(t, "s1", got["currentSprint"])
}

func TestDependencies_LevelFilter(t *testing.T) {
    svc := &stubService{result: &analytics.Result{
        Dependencies: analytics.Graph{
            Nodes: map[string]analytics.Node{
                "issue-1": {ID: "issue-1", Level: analytics.LevelStory},
                "issue-2": {ID: "issue-2", Level: analytics.LevelStory},
                "epic-9":  {ID: "epic-9", Level: analytics.LevelEpic},
            },
            Edges: []analytics.Edge{
                {From: "issue-1", To: "issue-2", Relation: analytics.RelationBlocks},
                {From: "issue-1", To: "epic-9", Relation: analytics.RelationDependsOn},
            },
            Cycles:       [][]string{},
            CriticalPath: []string{"issue-1", "issue-2"},
        },
    }}
    r := testRouter(svc)

    w := do(r, http.MethodGet, "/api/dependencies", "")
    require.Equal(t, http.StatusOK, w.Code)
    var full analytics.Graph
    require.NoError(t, json.Unmarshal(w.Body.Bytes(), &full))
    assert.Len(t, full.Edges, 2)

    w = do(r, http.MethodGet, "/api/dependencies?level=story", "")
    require.Equal(t, http.StatusOK, w.Code)
    var filtered analytics.Graph
    require.NoError(t, json.Unmarshal(w.Body.Bytes(), &filtered))
    assert.Len(t, filtered.Edges, 1)
    // The critical path is not re-derived from the filtered edge set.
    assert.Equal(t, []string{"issue-1", "issue-2"}, filtered.CriticalPath)
}

func TestFail_InvariantMapsTo422(t *testing.T) {
    svc := &stubService{putErr: domain.InvariantError{Path: "risks", Detail: "probability/impact out of range"}}
    w := do(testRouter(svc), http.MethodPut, "/api/state/risks", `[]`)
    require.Equal(t, http.StatusUnprocessableEntity, w.Code)
    var got map[string]any
    require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
    assert.Equal(t, "invariant", got["kind"])
    assert.Equal(t, "risks", got["path"])
}

func TestFail_TrackerErrorMapsTo502(t *testing.T) {
    svc := &stubService{err: &tracker.APIError{Status: 503, Body: "upstream down"}}
    w := do(testRouter(svc), http.MethodGet, "/api/analytics", "")
    assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestState_RoundTripAndMissing(t *testing.T) {
    svc := &stubService{}
    r := testRouter(svc)

    w := do(r, http.MethodGet, "/api/state/absences", "")
    assert.Equal(t, http.StatusNotFound, w.Code)

    w = do(r, http.MethodPut, "/api/state/absences", `[{"username":"u","startDate":"2025-02-01T00:00:00Z","endDate":"2025-02-03T00:00:00Z"}]`)
    require.Equal(t, http.StatusOK, w.Code)

    w = do(r, http.MethodGet, "/api/state/absences", "")
    require.Equal(t, http.StatusOK, w.Code)
    assert.Contains(t, w.Body.String(), `"username":"u"`)
}

func TestReassign_ReportsPerIssue(t *testing.T) {
    svc := &stubService{}
    w := do(testRouter(svc), http.MethodPost, "/api/issues/reassign", `[{"iid":1,"userId":10},{"iid":2,"userId":11}]`)
    require.Equal(t, http.StatusOK, w.Code)
    var report services.ReassignReport
    require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
    assert.Equal(t, []int{1, 2}, report.Successful)
}

func TestExport_ServesCSVAttachment(t *testing.T) {
    svc := &stubService{result: &analytics.Result{}}
    w := do(testRouter(svc), http.MethodGet, "/api/export/velocity.csv", "")
    require.Equal(t, http.StatusOK, w.Code)
    assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
    assert.Contains(t, w.Header().Get("Content-Disposition"), `velocity.csv`)
    assert.Equal(t, `"a","b"`+"\r\n", w.Body.String())
}

func TestMetricsEndpointExposed(t *testing.T) {
    w := do(testRouter(&stubService{result: &analytics.Result{}}), http.MethodGet, "/metrics", "")
    assert.Equal(t, http.StatusOK, w.Code)
    assert.Contains(t, w.Body.String(), "go_goroutines")
}
