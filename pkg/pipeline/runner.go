package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/orgraph/pkg/checkpoint"
	"github.com/matzehuels/orgraph/pkg/crawl"
	"github.com/matzehuels/orgraph/pkg/github"
	"github.com/matzehuels/orgraph/pkg/graph"
	"github.com/matzehuels/orgraph/pkg/publish"
)

// Runner executes the pipeline. The CLI builds one from configuration and
// uses it for both crawls and offline rebuilds.
type Runner struct {
	Lister     Lister        // Required by Execute only
	Scanner    crawl.Scanner // Required by Execute only
	Store      checkpoint.Store
	Builder    *graph.Builder
	Publishers []publish.Publisher
	Logger     *log.Logger
}

func (r *Runner) logger() *log.Logger {
	if r.Logger == nil {
		return log.Default()
	}
	return r.Logger
}

// Execute runs a full crawl and emits the graph.
//
// If listing fails the graph is still rebuilt from the checkpoint and the
// listing error is returned. If the crawl is interrupted the graph covers
// every scan checkpointed so far and ctx.Err() is returned with the result.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if r.Lister == nil || r.Scanner == nil {
		return nil, ErrNoLister
	}
	logger := r.logger()

	repos, err := r.Lister.ListOrgRepos(ctx, opts.RepoLimit)
	if err != nil {
		logger.Error("listing repositories failed; rebuilding graph from checkpoint", "err", err)
		res, rebuildErr := r.Rebuild(context.WithoutCancel(ctx), opts)
		return res, errors.Join(fmt.Errorf("list repositories: %w", err), rebuildErr)
	}
	names := github.Names(github.FilterRepos(repos, opts.IncludeArchived, opts.IncludeForks))
	logger.Info("listed repositories", "total", len(repos), "selected", len(names))

	crawlOpts := opts.Crawl
	if crawlOpts.Logger == nil {
		crawlOpts.Logger = logger
	}
	cr, crawlErr := crawl.New(r.Scanner, r.Store, crawlOpts).Run(ctx, names)
	if cr == nil {
		return nil, fmt.Errorf("crawl: %w", crawlErr)
	}
	res, emitErr := r.emit(context.WithoutCancel(ctx), cr.Dependencies, opts)
	if res != nil {
		res.Repositories = len(names)
		res.Crawl = cr
	}
	if crawlErr != nil {
		return res, crawlErr
	}
	return res, emitErr
}

// Rebuild builds and emits the graph from the checkpoint alone, without
// talking to GitHub.
func (r *Runner) Rebuild(ctx context.Context, opts Options) (*Result, error) {
	deps, err := r.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return r.emit(ctx, deps, opts)
}

func (r *Runner) emit(ctx context.Context, deps map[string][]string, opts Options) (*Result, error) {
	builder := r.Builder
	if builder == nil {
		return nil, errors.New("pipeline: no graph builder configured")
	}

	start := time.Now()
	g := builder.Build(deps)
	res := &Result{
		Graph:     g,
		Summary:   graph.Stats(g, 10),
		Artifacts: make(map[string][]byte),
	}
	r.logger().Info("built graph",
		"nodes", res.Summary.Nodes,
		"links", res.Summary.Links,
		"max_depth", res.Summary.MaxDepth,
		"duration", time.Since(start).Round(time.Millisecond))

	artifacts, err := r.Emit(ctx, g, opts)
	res.Artifacts = artifacts
	return res, err
}

// Emit renders g in every configured format and publishes the JSON document.
// All destinations are attempted; their errors are joined.
func (r *Runner) Emit(ctx context.Context, g *graph.Graph, opts Options) (map[string][]byte, error) {
	artifacts := make(map[string][]byte)
	data, err := graph.Marshal(g)
	if err != nil {
		return artifacts, fmt.Errorf("marshal graph: %w", err)
	}
	artifacts[FormatJSON] = data

	var errs []error
	if err := publish.All(ctx, data, r.Publishers...); err != nil {
		errs = append(errs, err)
	}

	if opts.DOTPath != "" || opts.SVGPath != "" {
		dot := graph.ToDOT(g)
		artifacts[FormatDOT] = []byte(dot)
		if opts.DOTPath != "" {
			if err := publish.WriteFile(opts.DOTPath, artifacts[FormatDOT]); err != nil {
				errs = append(errs, err)
			}
		}
		if opts.SVGPath != "" {
			if err := r.writeSVG(ctx, dot, opts.SVGPath, artifacts); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return artifacts, errors.Join(errs...)
}

func (r *Runner) writeSVG(ctx context.Context, dot, path string, artifacts map[string][]byte) error {
	svg, err := graph.RenderSVG(ctx, dot)
	if err != nil {
		return fmt.Errorf("render svg: %w", err)
	}
	artifacts[FormatSVG] = svg
	return publish.WriteFile(path, svg)
}
