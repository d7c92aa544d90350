/* Copyright (c) 2025 Pulseboard contributors
 * SPDX-License-Identifier: BSD-3-Clause */
package analytics

import (
    "fmt"
    "regexp"
    "sort"
    "strings"

    "github.com/pulseboard-io/pulseboard/internal/domain"
)

const (
    RelationDependsOn   = "depends_on"
    RelationBlockedBy   = "blocked_by"
    RelationBlocks      = "blocks"
    RelationRequiredFor = "required_for"
    RelationRelated     = "related"

    LevelInitiative = "initiative"
    LevelEpic       = "epic"
    LevelEpicChild  = "epic-child"
    LevelStory      = "story"
)

type Node struct {
    ID    string `json:"id"`
    Title string `json:"title"`
    Level string `json:"level"`
}

type Edge struct {
    From     string `json:"from"`
    To       string `json:"to"`
    Relation string `json:"relation"`
}

type Graph struct {
    Nodes        map[string]Node `json:"nodes"`
    Edges        []Edge          `json:"edges"`
    Cycles       [][]string      `json:"cycles"`
    CriticalPath []string        `json:"criticalPath"`
}

const targetToken = `(#\d+|epic-\d+|story-\d+)`

var relationPatterns = []struct {
    re       *regexp.Regexp
    relation string
}{
    {regexp.MustCompile(`(?i)depends on:?\s*` + targetToken), RelationDependsOn},
    {regexp.MustCompile(`(?i)blocked by:?\s*` + targetToken), RelationBlockedBy},
    {regexp.MustCompile(`(?i)blocks:?\s*` + targetToken), RelationBlocks},
    {regexp.MustCompile(`(?i)required for:?\s*` + targetToken), RelationRequiredFor},
}

var mentionedRe = regexp.MustCompile(`(?i)mentioned in \(?(#\d+)\)?`)

// normalizeTarget maps a matched token to a node id. story-N aliases
// issue-N; the #N shorthand is always an issue.
func normalizeTarget(token string) string {
    token = strings.ToLower(strings.TrimSpace(token))
    switch {
    case strings.HasPrefix(token, "#"):
        return "issue-" + token[1:]
    case strings.HasPrefix(token, "story-"):
        return "issue-" + strings.TrimPrefix(token, "story-")
    default:
        return token
    }
}

func issueNodeID(iid int) string { return fmt.Sprintf("issue-%d", iid) }
func epicNodeID(id int64) string { return fmt.Sprintf("epic-%d", id) }

// BuildGraph extracts dependency edges from issue fields and from the text
// of issue and epic descriptions, then runs cycle detection and the
// critical path over the full graph. Edges referencing unknown nodes are
// dropped silently.
func BuildGraph(issues []domain.Issue, epics []domain.Epic) Graph {
    g := Graph{Nodes: map[string]Node{}, Edges: []Edge{}, Cycles: [][]string{}, CriticalPath: []string{}}

    for _, i := range issues {
        level := LevelStory
        for _, l := range i.Labels {
            if strings.HasPrefix(l, "initiative::") { level = LevelInitiative; break }
        }
        if level == LevelStory && i.Epic != nil { level = LevelEpicChild }
        g.Nodes[issueNodeID(i.IID)] = Node{ID: issueNodeID(i.IID), Title: i.Title, Level: level}
    }
    for _, e := range epics {
        g.Nodes[epicNodeID(e.ID)] = Node{ID: epicNodeID(e.ID), Title: e.Title, Level: LevelEpic}
    }

    seen := map[string]bool{}
    add := func(from, to, relation string) {
        if from == to { return }
        if _, ok := g.Nodes[from]; !ok { return }
        if _, ok := g.Nodes[to]; !ok { return }
        key := from + "|" + to + "|" + relation
        if seen[key] { return }
        seen[key] = true
        g.Edges = append(g.Edges, Edge{From: from, To: to, Relation: relation})
    }

    mine := func(id, text string) {
        for _, p := range relationPatterns {
            for _, m := range p.re.FindAllStringSubmatch(text, -1) {
                add(id, normalizeTarget(m[1]), p.relation)
            }
        }
    }

    for _, i := range issues {
        id := issueNodeID(i.IID)
        for _, blocked := range i.BlockingIssues {
            add(id, issueNodeID(blocked), RelationBlocks)
        }
        mine(id, i.Description)
        for _, n := range i.Notes {
            for _, m := range mentionedRe.FindAllStringSubmatch(n.Body, -1) {
                add(id, normalizeTarget(m[1]), RelationRelated)
            }
        }
    }
    for _, e := range epics {
        mine(epicNodeID(e.ID), e.Description)
    }

    g.Cycles = findCycles(g)
    g.CriticalPath = criticalPath(g)
    return g
}

// adjacency returns the out-edge map over stable-sorted node ids so
// traversal order, and therefore tie-breaking, is deterministic.
func adjacency(g Graph) (map[string][]string, []string) {
    adj := map[string][]string{}
    for _, e := range g.Edges {
        adj[e.From] = append(adj[e.From], e.To)
    }
    ids := make([]string, 0, len(g.Nodes))
    for id := range g.Nodes {
        ids = append(ids, id)
        sort.Strings(adj[id])
    }
    sort.Strings(ids)
    return adj, ids
}

// findCycles runs a DFS with an explicit recursion stack; every back edge
// reports the stack slice from the revisited node onward. Each cycle is
// reported once regardless of entry point.
func findCycles(g Graph) [][]string {
    adj, ids := adjacency(g)
    visited := map[string]bool{}
    onStack := map[string]bool{}
    var stack []string
    cycles := [][]string{}
    reported := map[string]bool{}

    var dfs func(id string)
    dfs = func(id string) {
        visited[id] = true
        onStack[id] = true
        stack = append(stack, id)
        for _, next := range adj[id] {
            if !visited[next] {
                dfs(next)
            } else if onStack[next] {
                start := 0
                for i, s := range stack {
                    if s == next { start = i; break }
                }
                cycle := append([]string(nil), stack[start:]...)
                if key := cycleKey(cycle); !reported[key] {
                    reported[key] = true
                    cycles = append(cycles, cycle)
                }
            }
        }
        stack = stack[:len(stack)-1]
        onStack[id] = false
    }
    for _, id := range ids {
        if !visited[id] { dfs(id) }
    }
    return cycles
}

// cycleKey canonicalizes a cycle by rotating it to its smallest node id.
func cycleKey(cycle []string) string {
    if len(cycle) == 0 { return "" }
    min := 0
    for i, id := range cycle {
        if id < cycle[min] { min = i }
    }
    rotated := append(append([]string(nil), cycle[min:]...), cycle[:min]...)
    return strings.Join(rotated, ">")
}

// criticalPath finds the globally longest chain by BFS relaxation from every
// source (in-degree zero) node; on graphs with cycles the relaxation count
// per node is bounded so the walk terminates. Ties keep the first path
// discovered.
func criticalPath(g Graph) []string {
    adj, ids := adjacency(g)
    indeg := map[string]int{}
    for _, e := range g.Edges { indeg[e.To]++ }

    dist := map[string]int{}
    prev := map[string]string{}
    relaxed := map[string]int{}
    limit := len(g.Nodes) + 1

    var queue []string
    for _, id := range ids {
        if indeg[id] == 0 {
            dist[id] = 0
            queue = append(queue, id)
        }
    }
    if len(queue) == 0 && len(ids) > 0 {
        // Fully cyclic graph: no sources, no meaningful longest chain.
        return []string{}
    }
    for len(queue) > 0 {
        id := queue[0]
        queue = queue[1:]
        for _, next := range adj[id] {
            nd := dist[id] + 1
            if cur, ok := dist[next]; !ok || nd > cur {
                if relaxed[next] >= limit { continue }
                relaxed[next]++
                dist[next] = nd
                prev[next] = id
                queue = append(queue, next)
            }
        }
    }

    best := ""
    for _, id := range ids {
        if best == "" || dist[id] > dist[best] { best = id }
    }
    if best == "" || dist[best] == 0 { return []string{} }
    var path []string
    for at := best; ; {
        path = append([]string{at}, path...)
        p, ok := prev[at]
        if !ok { break }
        at = p
    }
    return path
}

// FilterEdges restricts edges to a level group: "initiative", "epic"
// (epic or epic-child), "story", or "" for all. Cycle and critical-path
// results always come from the full graph.
func FilterEdges(g Graph, level string) []Edge {
    if level == "" || level == "all" { return g.Edges }
    match := func(nodeLevel string) bool {
        switch level {
        case LevelInitiative:
            return nodeLevel == LevelInitiative
        case LevelEpic:
            return nodeLevel == LevelEpic || nodeLevel == LevelEpicChild
        case LevelStory:
            return nodeLevel == LevelStory
        default:
            return false
        }
    }
    out := []Edge{}
    for _, e := range g.Edges {
        if match(g.Nodes[e.From].Level) && match(g.Nodes[e.To].Level) { out = append(out, e) }
    }
    return out
}
