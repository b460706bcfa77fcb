// Package pipeline ties the orgraph stages into one run.
//
// A run lists the organization's repositories, crawls the ones the checkpoint
// doesn't hold yet, builds the internal dependency graph from the complete
// checkpoint and emits it. The graph is emitted even when the crawl was
// interrupted, so every run leaves a document that reflects all finished scans.
package pipeline

import (
	"context"
	"errors"

	"github.com/matzehuels/orgraph/pkg/crawl"
	"github.com/matzehuels/orgraph/pkg/github"
	"github.com/matzehuels/orgraph/pkg/graph"
)

// Artifact formats.
const (
	FormatJSON = "json"
	FormatDOT  = "dot"
	FormatSVG  = "svg"
)

// Lister enumerates the organization's repositories.
type Lister interface {
	ListOrgRepos(ctx context.Context, limit int) ([]github.Repo, error)
}

// Options configures one run.
type Options struct {
	RepoLimit       int // 0 lists every repository
	IncludeArchived bool
	IncludeForks    bool
	Crawl           crawl.Options

	DOTPath string // Optional Graphviz source output
	SVGPath string // Optional rendered output
}

// Result describes a finished run.
type Result struct {
	Repositories int           // Repositories selected for the crawl
	Crawl        *crawl.Result // Nil for offline rebuilds
	Graph        *graph.Graph
	Summary      graph.Summary
	Artifacts    map[string][]byte // Keyed by Format* constant
}

// ErrNoLister is returned by [Runner.Execute] when the runner has no lister.
var ErrNoLister = errors.New("pipeline: no repository lister configured")
