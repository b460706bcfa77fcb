package graph

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"
)

// ToDOT converts g to Graphviz DOT. Nodes of equal depth share a rank, and
// internal packages are labeled with their dependent count.
func ToDOT(g *Graph) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.8;\n")
	buf.WriteString("  nodesep=0.3;\n")

	depth := -1
	for _, n := range g.Nodes {
		if n.Depth != depth {
			if depth >= 0 {
				buf.WriteString("  }\n")
			}
			depth = n.Depth
			fmt.Fprintf(&buf, "\n  subgraph depth_%d {\n    rank=same;\n", depth)
		}
		fmt.Fprintf(&buf, "    %q [%s];\n", n.ID, nodeAttrs(n))
	}
	if depth >= 0 {
		buf.WriteString("  }\n")
	}

	buf.WriteString("\n")
	for _, l := range g.Links {
		fmt.Fprintf(&buf, "  %q -> %q [penwidth=%s];\n", l.Source, l.Target, penWidth(l.Count))
	}
	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(n Node) string {
	if n.Count == 0 {
		return fmt.Sprintf("label=%q, fillcolor=lightgrey", n.ID)
	}
	return fmt.Sprintf("label=%q", fmt.Sprintf("%s\n(%d)", n.ID, n.Count))
}

// penWidth grows with the target's popularity, capped so hubs stay readable.
func penWidth(count int) string {
	w := 1 + float64(min(count, 20))*0.25
	return strconv.FormatFloat(w, 'f', 2, 64)
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the SVG scales from its
// viewBox instead of Graphviz's point-based size.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}
