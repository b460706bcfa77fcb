// Package graph turns per-repository dependency lists into the internal
// dependency graph of an organization.
//
// Only internal dependencies are kept: identifiers that start with the
// configured namespace prefix (for example "@acme/"). Third-party packages
// never appear in the graph.
//
// # Building
//
// Building happens in two steps. [Builder.CountDependencies] counts, per
// internal identifier, the distinct repositories depending on it.
// [Builder.BuildGraph] then assigns every node a depth:
//
//   - Repositories nothing else depends on are roots at depth 0.
//   - A dependency sits one level below the deepest node that depends on it.
//     If a package is reached at depth 1 from one repository and at depth 3
//     from another, its depth is 3.
//   - A dependency that leads back to a node on the current path is linked
//     but not expanded again, so cycles terminate.
//
// Every edge carries the total dependent count of its target, which lets a
// renderer scale edge weight by the target's popularity.
//
// # Serialization
//
// Graphs use the node-link JSON format read by the visualization client:
//
//	{
//	  "nodes": [{"id": "svc-a", "depth": 0, "count": 0}],
//	  "links": [{"source": "svc-a", "target": "@acme/lib", "count": 2}]
//	}
//
// Output is sorted, so the same input always produces the same bytes.
// [ToDOT] and [RenderSVG] produce a Graphviz preview of the same graph.
package graph
