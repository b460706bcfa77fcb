package graph

import (
	"cmp"
	"slices"
	"strings"
)

// Summary describes the shape of a graph.
type Summary struct {
	Nodes    int    `json:"nodes"`
	Links    int    `json:"links"`
	Roots    int    `json:"roots"`
	MaxDepth int    `json:"max_depth"`
	Top      []Node `json:"top"` // Most depended-on nodes, highest count first
}

// Stats summarizes g, listing up to top of the most depended-on nodes.
// A non-positive top lists all of them.
func Stats(g *Graph, top int) Summary {
	s := Summary{Nodes: len(g.Nodes), Links: len(g.Links), Top: []Node{}}
	var popular []Node
	for _, n := range g.Nodes {
		if n.Depth == 0 {
			s.Roots++
		}
		s.MaxDepth = max(s.MaxDepth, n.Depth)
		if n.Count > 0 {
			popular = append(popular, n)
		}
	}
	slices.SortFunc(popular, func(a, b Node) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), strings.Compare(a.ID, b.ID))
	})
	if top > 0 && len(popular) > top {
		popular = popular[:top]
	}
	s.Top = append(s.Top, popular...)
	return s
}
