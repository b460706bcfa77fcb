package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/orgraph/pkg/config"
	"github.com/matzehuels/orgraph/pkg/pipeline"
)

// outputFlags are shared by the commands that write a graph.
type outputFlags struct {
	output string
	dot    string
	svg    string
	prefix string
}

func (f *outputFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.output, "output", "o", config.DefaultOutputPath, "graph JSON output path")
	fs.StringVar(&f.dot, "dot", "", "also write Graphviz DOT to this path")
	fs.StringVar(&f.svg, "svg", "", "also render SVG to this path")
	fs.StringVar(&f.prefix, "prefix", "", "internal package prefix, e.g. @acme/ (overrides graph.internal_prefix)")
}

func (f *outputFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("output") {
		cfg.Output.Path = f.output
	}
	if fs.Changed("dot") {
		cfg.Output.DOTPath = f.dot
	}
	if fs.Changed("svg") {
		cfg.Output.SVGPath = f.svg
	}
	if fs.Changed("prefix") {
		cfg.Graph.InternalPrefix = f.prefix
	}
}

type scanFlags struct {
	outputFlags
	maxDepth        int
	concurrency     int
	batchSize       int
	batchPause      time.Duration
	quotaPause      time.Duration
	limit           int
	includeArchived bool
	includeForks    bool
	noCache         bool
	fresh           bool
}

func (f *scanFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	f.outputFlags.apply(fs, cfg)
	if fs.Changed("max-depth") {
		cfg.Scan.MaxDepth = f.maxDepth
	}
	if fs.Changed("concurrency") {
		cfg.Crawl.Concurrency = f.concurrency
	}
	if fs.Changed("batch-size") {
		cfg.Crawl.BatchSize = f.batchSize
	}
	if fs.Changed("batch-pause") {
		cfg.Crawl.BatchPause = f.batchPause
	}
	if fs.Changed("quota-pause") {
		cfg.Crawl.QuotaPause = f.quotaPause
	}
	if fs.Changed("limit") {
		cfg.GitHub.RepoLimit = f.limit
	}
	if fs.Changed("include-archived") {
		cfg.GitHub.IncludeArchived = f.includeArchived
	}
	if fs.Changed("include-forks") {
		cfg.GitHub.IncludeForks = f.includeForks
	}
	if f.noCache {
		cfg.Cache.Backend = config.CacheNone
	}
}

func (c *CLI) scanCommand() *cobra.Command {
	var flags scanFlags
	d := config.Default()

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Crawl the organization and write its internal dependency graph",
		Long: `Crawl every repository of the organization, record the dependencies declared
in each one and write the internal dependency graph.

Progress is checkpointed after every repository. Re-running scan resumes where
the previous run stopped; use --fresh to start over. An interrupted run still
writes a graph covering every repository scanned so far.`,
		Example: `  orgraph scan --org acme --prefix @acme/
  orgraph scan --org acme --prefix @acme/ --svg graph.svg --concurrency 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.apply(cmd.Flags(), c.Config)
			return c.runScan(cmd.Context(), flags.fresh)
		},
	}

	fs := cmd.Flags()
	flags.register(fs)
	fs.IntVar(&flags.maxDepth, "max-depth", d.Scan.MaxDepth, "directory depth searched in repositories without a workspace config")
	fs.IntVar(&flags.concurrency, "concurrency", d.Crawl.Concurrency, "repositories scanned at once")
	fs.IntVar(&flags.batchSize, "batch-size", d.Crawl.BatchSize, "repositories per batch")
	fs.DurationVar(&flags.batchPause, "batch-pause", d.Crawl.BatchPause, "pause between batches")
	fs.DurationVar(&flags.quotaPause, "quota-pause", d.Crawl.QuotaPause, "pause after the API quota ran out")
	fs.IntVar(&flags.limit, "limit", 0, "scan at most this many repositories (0 for all)")
	fs.BoolVar(&flags.includeArchived, "include-archived", false, "include archived repositories")
	fs.BoolVar(&flags.includeForks, "include-forks", false, "include forks")
	fs.BoolVar(&flags.noCache, "no-cache", false, "disable the content cache")
	fs.BoolVar(&flags.fresh, "fresh", false, "discard the checkpoint and scan every repository again")

	return cmd
}

func (c *CLI) runScan(ctx context.Context, fresh bool) error {
	cs, err := c.newRunner(ctx, true)
	if err != nil {
		return err
	}
	defer cs.close()

	if fresh {
		if err := cs.runner.Store.Clear(ctx); err != nil {
			return fmt.Errorf("clear checkpoint: %w", err)
		}
		c.Logger.Info("checkpoint cleared")
	}

	prog := newProgress(c.Logger)
	res, err := cs.runner.Execute(ctx, c.pipelineOptions())
	interrupted := errors.Is(err, context.Canceled)
	if res != nil {
		prog.done(fmt.Sprintf("Crawled %s", c.Config.GitHub.Org))
		c.printRunResult(res, interrupted)
	}
	return err
}

func (c *CLI) printRunResult(res *pipeline.Result, interrupted bool) {
	p := c.printer()
	if interrupted {
		p.warning("Interrupted; the graph covers every repository scanned so far")
	}
	if cr := res.Crawl; cr != nil {
		p.success("Scanned %d repositories", cr.Scanned)
		p.detail("%d already checkpointed · %d failed · %d quota exhausted · %d batches",
			cr.Skipped, cr.Failed, cr.QuotaExhausted, cr.Batches)
	}
	p.summary(res.Summary)
	p.file(c.Config.Output.Path)
	for _, path := range []string{c.Config.Output.DOTPath, c.Config.Output.SVGPath} {
		if path != "" {
			p.file(path)
		}
	}
	if c.Config.S3.Bucket != "" {
		p.file(fmt.Sprintf("s3://%s/%s", c.Config.S3.Bucket, c.Config.S3.Key))
	}
	if interrupted {
		p.nextStep("Resume with", "orgraph scan")
	}
}
