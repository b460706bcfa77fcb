package graph

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountDependencies(t *testing.T) {
	b := NewBuilder("@org/", nil)
	counts := b.CountDependencies(map[string][]string{
		"svcA": {"@org/libX", "@org/libY", "left-pad", "@org/libX"},
		"svcB": {"@org/libX"},
		"svcC": {"react", "@other/thing"},
	})

	assert.Equal(t, map[string]*DependencyCount{
		"@org/libX": {Count: 2, Sources: []string{"svcA", "svcB"}},
		"@org/libY": {Count: 1, Sources: []string{"svcA"}},
	}, counts)
}

func TestBuildGraph_Scenario(t *testing.T) {
	b := NewBuilder("@org/", nil)
	g := b.Build(map[string][]string{
		"svcA": {"@org/libX", "@org/libY", "left-pad"},
		"svcB": {"@org/libX"},
	})

	assert.Equal(t, []Node{
		{ID: "svcA", Depth: 0, Count: 0},
		{ID: "svcB", Depth: 0, Count: 0},
		{ID: "@org/libX", Depth: 1, Count: 2},
		{ID: "@org/libY", Depth: 1, Count: 1},
	}, g.Nodes)
	assert.Equal(t, []Link{
		{Source: "svcA", Target: "@org/libX", Count: 2},
		{Source: "svcA", Target: "@org/libY", Count: 1},
		{Source: "svcB", Target: "@org/libX", Count: 2},
	}, g.Links)
}

func TestBuildGraph_ChainDepths(t *testing.T) {
	g := NewBuilder("@org/", nil).Build(map[string][]string{
		"repo1":     {"@org/dep1"},
		"@org/dep1": {"@org/dep2"},
		"@org/dep2": {"@org/dep3"},
	})

	depths := map[string]int{}
	for _, n := range g.Nodes {
		depths[n.ID] = n.Depth
	}
	assert.Equal(t, map[string]int{"repo1": 0, "@org/dep1": 1, "@org/dep2": 2, "@org/dep3": 3}, depths)
}

func TestBuildGraph_MaximumDepth(t *testing.T) {
	// @org/core is one hop from svc-b but three hops from svc-a.
	g := NewBuilder("@org/", nil).Build(map[string][]string{
		"svc-a":     {"@org/ui"},
		"@org/ui":   {"@org/util"},
		"@org/util": {"@org/core"},
		"svc-b":     {"@org/core"},
	})

	for _, n := range g.Nodes {
		if n.ID == "@org/core" {
			assert.Equal(t, 3, n.Depth)
			assert.Equal(t, 2, n.Count)
			return
		}
	}
	t.Fatal("@org/core missing")
}

func TestBuildGraph_Cycles(t *testing.T) {
	tests := []struct {
		name      string
		repoDeps  map[string][]string
		wantNodes []Node
		wantLinks int
	}{
		{
			name: "cycle below a root",
			repoDeps: map[string][]string{
				"svc":    {"@org/a"},
				"@org/a": {"@org/b"},
				"@org/b": {"@org/a"},
			},
			wantNodes: []Node{
				{ID: "svc", Depth: 0},
				{ID: "@org/a", Depth: 1, Count: 2},
				{ID: "@org/b", Depth: 2, Count: 1},
			},
			wantLinks: 3,
		},
		{
			name: "cycle with no root",
			repoDeps: map[string][]string{
				"@org/a": {"@org/b"},
				"@org/b": {"@org/a"},
			},
			wantNodes: []Node{
				{ID: "@org/a", Depth: 0, Count: 1},
				{ID: "@org/b", Depth: 1, Count: 1},
			},
			wantLinks: 2,
		},
		{
			name: "later root reaches cycle deeper",
			repoDeps: map[string][]string{
				"r1":     {"@org/a"},
				"r2":     {"@org/b"},
				"@org/a": {"@org/b"},
				"@org/b": {"@org/c"},
				"@org/c": {"@org/a"},
			},
			wantNodes: []Node{
				{ID: "r1", Depth: 0},
				{ID: "r2", Depth: 0},
				{ID: "@org/b", Depth: 2, Count: 2},
				{ID: "@org/a", Depth: 3, Count: 2},
				{ID: "@org/c", Depth: 3, Count: 1},
			},
			wantLinks: 5,
		},
		{
			name:      "self dependency",
			repoDeps:  map[string][]string{"@org/a": {"@org/a"}},
			wantNodes: []Node{{ID: "@org/a", Depth: 0, Count: 1}},
			wantLinks: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewBuilder("@org/", nil).Build(tt.repoDeps)
			assert.Equal(t, tt.wantNodes, g.Nodes)
			assert.Len(t, g.Links, tt.wantLinks)
		})
	}
}

func TestBuildGraph_Deterministic(t *testing.T) {
	repoDeps := map[string][]string{}
	for i := range 40 {
		var deps []string
		for j := range 5 {
			deps = append(deps, fmt.Sprintf("@org/lib%02d", (i*7+j*3)%25))
		}
		repoDeps[fmt.Sprintf("@org/lib%02d", i)] = deps
		repoDeps[fmt.Sprintf("svc%02d", i)] = deps[:2]
	}

	b := NewBuilder("@org/", nil)
	first, err := Marshal(b.Build(repoDeps))
	require.NoError(t, err)
	for range 10 {
		next, err := Marshal(b.Build(repoDeps))
		require.NoError(t, err)
		require.True(t, bytes.Equal(first, next), "graph output differs between runs")
	}
}

func TestBuildGraph_OnlyInternalIdentifiers(t *testing.T) {
	g := NewBuilder("@org/", nil).Build(map[string][]string{
		"svc": {"express", "@org/lib", "lodash"},
	})
	for _, n := range g.Nodes {
		assert.False(t, n.ID == "express" || n.ID == "lodash", "third-party node %q", n.ID)
	}
	for _, l := range g.Links {
		assert.True(t, strings.HasPrefix(l.Target, "@org/"))
	}
}

func TestBuildGraph_Empty(t *testing.T) {
	g := NewBuilder("@org/", nil).Build(nil)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Links)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, g))
	assert.JSONEq(t, `{"nodes":[],"links":[]}`, buf.String())
}

func TestBuildGraph_RecoversFromPanic(t *testing.T) {
	b := NewBuilder("@org/", nil)
	counts := map[string]*DependencyCount{"@org/lib": nil}

	g := b.BuildGraph(map[string][]string{"svc": {"@org/lib"}}, counts)
	assert.Equal(t, Empty(), g)
}

func TestJSONRoundTrip(t *testing.T) {
	g := NewBuilder("@org/", nil).Build(map[string][]string{
		"svcA": {"@org/libX"},
		"svcB": {"@org/libX"},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, g))
	assert.Contains(t, buf.String(), `"links"`)
	assert.NotContains(t, buf.String(), `"edges"`)

	got, err := ReadJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, g, got)
}

func TestToDOT(t *testing.T) {
	g := NewBuilder("@org/", nil).Build(map[string][]string{
		"svcA": {"@org/libX"},
		"svcB": {"@org/libX"},
	})
	dot := ToDOT(g)

	assert.True(t, strings.HasPrefix(dot, "digraph G {"))
	assert.Contains(t, dot, "subgraph depth_0")
	assert.Contains(t, dot, "subgraph depth_1")
	assert.Contains(t, dot, `"svcA" -> "@org/libX"`)
	assert.Contains(t, dot, `label="@org/libX\n(2)"`)
	assert.Equal(t, strings.Count(dot, "{"), strings.Count(dot, "}"))
}

func TestStats(t *testing.T) {
	g := NewBuilder("@org/", nil).Build(map[string][]string{
		"svcA":      {"@org/libX", "@org/libY"},
		"svcB":      {"@org/libX"},
		"@org/libY": {"@org/libZ"},
	})

	s := Stats(g, 2)
	assert.Equal(t, 5, s.Nodes)
	assert.Equal(t, 4, s.Links)
	assert.Equal(t, 2, s.Roots)
	assert.Equal(t, 2, s.MaxDepth)
	require.Len(t, s.Top, 2)
	assert.Equal(t, "@org/libX", s.Top[0].ID)
	assert.Equal(t, "@org/libY", s.Top[1].ID)
}
