package graph

import (
	"cmp"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/elliotchance/orderedmap/v2"
)

// Node is one repository or internal package.
type Node struct {
	ID    string `json:"id"`
	Depth int    `json:"depth"`
	Count int    `json:"count"` // Distinct repositories depending on this node
}

// Link is a dependency edge. Count is the target's total dependent count.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Count  int    `json:"count"`
}

// Graph is the node-link representation of the dependency graph.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Empty returns a graph with no nodes and no links.
func Empty() *Graph {
	return &Graph{Nodes: []Node{}, Links: []Link{}}
}

// DependencyCount tracks who depends on an internal package.
type DependencyCount struct {
	Count   int      `json:"count"`
	Sources []string `json:"sources"`
}

// Builder builds graphs for one internal namespace.
type Builder struct {
	prefix string
	logger *log.Logger
}

// NewBuilder returns a Builder treating identifiers that start with prefix
// as internal.
func NewBuilder(prefix string, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.Default()
	}
	return &Builder{prefix: prefix, logger: logger}
}

// Prefix returns the internal namespace prefix.
func (b *Builder) Prefix() string { return b.prefix }

// IsInternal reports whether id belongs to the internal namespace.
func (b *Builder) IsInternal(id string) bool {
	return strings.HasPrefix(id, b.prefix)
}

// Build counts dependencies and builds the graph in one call.
func (b *Builder) Build(repoDeps map[string][]string) *Graph {
	return b.BuildGraph(repoDeps, b.CountDependencies(repoDeps))
}

// CountDependencies counts, for every internal identifier, the distinct
// repositories that declare it. Sources are sorted.
//
// On an unexpected internal failure the error is logged and an empty map is
// returned.
func (b *Builder) CountDependencies(repoDeps map[string][]string) (counts map[string]*DependencyCount) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("counting dependencies failed", "panic", r)
			counts = map[string]*DependencyCount{}
		}
	}()

	counts = make(map[string]*DependencyCount)
	for _, repo := range slices.Sorted(maps.Keys(repoDeps)) {
		for _, dep := range b.internalDeps(repoDeps[repo]) {
			c, ok := counts[dep]
			if !ok {
				c = &DependencyCount{}
				counts[dep] = c
			}
			c.Count++
			c.Sources = append(c.Sources, repo)
		}
	}
	return counts
}

// internalDeps returns the sorted, distinct internal identifiers of deps.
func (b *Builder) internalDeps(deps []string) []string {
	var out []string
	for _, d := range deps {
		if b.IsInternal(d) {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// BuildGraph assigns depths and collects edges. Nodes are sorted by depth then
// id; links by source then target.
//
// On an unexpected internal failure the error is logged and an empty graph is
// returned.
func (b *Builder) BuildGraph(repoDeps map[string][]string, counts map[string]*DependencyCount) (g *Graph) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("building graph failed", "panic", r)
			g = Empty()
		}
	}()

	w := &walker{
		deps:   make(map[string][]string, len(repoDeps)),
		counts: counts,
		nodes:  orderedmap.NewOrderedMap[string, *Node](),
		links:  make(map[Link]struct{}),
		onPath: make(map[string]bool),
	}
	dependedOn := make(map[string]bool)
	for repo, deps := range repoDeps {
		internal := b.internalDeps(deps)
		w.deps[repo] = internal
		for _, d := range internal {
			if d != repo {
				dependedOn[d] = true
			}
		}
	}

	repos := slices.Sorted(maps.Keys(repoDeps))
	for _, repo := range repos {
		if !dependedOn[repo] {
			w.root(repo)
		}
	}
	// Entries reachable only through a cycle.
	for _, repo := range repos {
		if _, ok := w.nodes.Get(repo); !ok {
			w.root(repo)
		}
	}

	return w.graph()
}

type walker struct {
	deps   map[string][]string
	counts map[string]*DependencyCount
	nodes  *orderedmap.OrderedMap[string, *Node]
	links  map[Link]struct{} // Count is filled in at the end
	onPath map[string]bool
	reach  map[string]int // Deepest depth seen from the current root
}

func (w *walker) count(id string) int {
	if c, ok := w.counts[id]; ok {
		return c.Count
	}
	return 0
}

// root starts a traversal at id. Each traversal tracks depths on its own, so
// a node cut short by the on-path check under one root is still followed to
// its full depth under another.
func (w *walker) root(id string) {
	w.nodes.Set(id, &Node{ID: id, Count: w.count(id)})
	w.reach = map[string]int{id: 0}
	w.visit(id, 0)
}

// visit expands id at depth. Within one traversal a dependency is expanded
// again only when this path places it deeper than before.
func (w *walker) visit(id string, depth int) {
	w.onPath[id] = true
	defer delete(w.onPath, id)

	for _, dep := range w.deps[id] {
		w.links[Link{Source: id, Target: dep}] = struct{}{}
		if w.onPath[dep] {
			continue
		}
		next := depth + 1
		if d, seen := w.reach[dep]; seen && d >= next {
			continue
		}
		w.reach[dep] = next
		n, ok := w.nodes.Get(dep)
		if !ok {
			n = &Node{ID: dep, Count: w.count(dep)}
			w.nodes.Set(dep, n)
		}
		n.Depth = max(n.Depth, next)
		w.visit(dep, next)
	}
}

func (w *walker) graph() *Graph {
	g := &Graph{
		Nodes: make([]Node, 0, w.nodes.Len()),
		Links: make([]Link, 0, len(w.links)),
	}
	for el := w.nodes.Front(); el != nil; el = el.Next() {
		g.Nodes = append(g.Nodes, *el.Value)
	}
	slices.SortFunc(g.Nodes, func(a, b Node) int {
		return cmp.Or(cmp.Compare(a.Depth, b.Depth), strings.Compare(a.ID, b.ID))
	})

	for l := range w.links {
		l.Count = max(w.count(l.Target), 1)
		g.Links = append(g.Links, l)
	}
	slices.SortFunc(g.Links, func(a, b Link) int {
		return cmp.Or(strings.Compare(a.Source, b.Source), strings.Compare(a.Target, b.Target))
	})
	return g
}
