// Package crawl drives the scanner over every repository of an organization.
//
// Repositories are processed in sequential batches. Within a batch a bounded
// number of scans run at once, and every completed scan is written to the
// checkpoint before the next one is recorded, so a crash loses at most the
// scans that were in flight. Repositories already present in the checkpoint
// are never scanned again.
//
// Between batches the crawler pauses to stay inside the API quota. When a scan
// gives up on an exhausted quota, no further scans of that batch start; they
// are carried into the next batch, which waits for the longer quota pause.
package crawl

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/orgraph/pkg/checkpoint"
	orgerrors "github.com/matzehuels/orgraph/pkg/errors"
	"github.com/matzehuels/orgraph/pkg/httputil"
	"github.com/matzehuels/orgraph/pkg/observability"
)

const (
	DefaultConcurrency = 10
	DefaultBatchSize   = 50
	DefaultBatchPause  = 60 * time.Second
	DefaultQuotaPause  = 5 * time.Minute
)

// Scanner returns the dependencies declared in one repository.
type Scanner interface {
	Scan(ctx context.Context, repo string, maxDepth int) ([]string, error)
}

// Options configures a [Crawler]. Zero values select the defaults.
type Options struct {
	MaxDepth    int // Passed to every scan; negative selects the scanner default
	Concurrency int
	BatchSize   int
	BatchPause  time.Duration
	QuotaPause  time.Duration

	// Sleep waits between batches. Defaults to [httputil.SleepContext].
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *log.Logger
}

// Result summarizes one run.
type Result struct {
	RunID string

	// Dependencies holds every checkpointed repository, including those
	// recorded by earlier runs.
	Dependencies map[string][]string

	Scanned        int // Scans that succeeded in this run
	Skipped        int // Repositories already in the checkpoint
	Failed         int // Scans recorded empty after an error
	QuotaExhausted int // Scans recorded empty after quota exhaustion
	Batches        int
	Duration       time.Duration
}

// Crawler runs scans in batches and checkpoints their results.
type Crawler struct {
	scanner Scanner
	store   checkpoint.Store
	opts    Options
	logger  *log.Logger
}

// New creates a Crawler.
func New(s Scanner, store checkpoint.Store, opts Options) *Crawler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchPause <= 0 {
		opts.BatchPause = DefaultBatchPause
	}
	if opts.QuotaPause <= 0 {
		opts.QuotaPause = DefaultQuotaPause
	}
	if opts.Sleep == nil {
		opts.Sleep = httputil.SleepContext
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Crawler{scanner: s, store: store, opts: opts, logger: logger}
}

// run holds the mutable state of one Run call.
type run struct {
	*Crawler
	logger   *log.Logger
	quotaHit atomic.Bool
	mu       sync.Mutex
	result   *Result
}

// Run scans every repository in repos that the checkpoint does not already
// hold.
//
// Scan failures never abort the run; the repository is recorded with an empty
// list. If ctx is cancelled no new scans are started, the scans in flight are
// awaited, and the result so far is returned together with ctx.Err().
func (c *Crawler) Run(ctx context.Context, repos []string) (*Result, error) {
	start := time.Now()
	r := &run{
		Crawler: c,
		result:  &Result{RunID: uuid.NewString()},
	}
	r.logger = c.logger.With("run", r.result.RunID)

	done, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	r.result.Dependencies = done

	var pending []string
	seen := make(map[string]bool, len(repos))
	for _, repo := range repos {
		if seen[repo] {
			continue
		}
		seen[repo] = true
		if _, ok := done[repo]; ok {
			r.result.Skipped++
			continue
		}
		pending = append(pending, repo)
	}
	size := c.opts.BatchSize
	r.logger.Info("starting crawl", "repos", len(seen), "skipped", r.result.Skipped,
		"pending", len(pending), "batches", batchCount(len(pending), size))

	// Scans deferred by an exhausted quota go back to the front of the queue.
	queue := pending
	for n := 1; len(queue) > 0; n++ {
		if ctx.Err() != nil {
			break
		}
		if n > 1 {
			if err := r.pause(ctx); err != nil {
				break
			}
		}
		batch := queue[:min(size, len(queue))]
		total := n - 1 + batchCount(len(queue), size)
		deferred := r.runBatch(ctx, n, total, batch)
		queue = slices.Concat(deferred, queue[len(batch):])
	}

	r.result.Duration = time.Since(start)
	r.logger.Info("crawl finished",
		"scanned", r.result.Scanned,
		"failed", r.result.Failed,
		"quota_exhausted", r.result.QuotaExhausted,
		"skipped", r.result.Skipped,
		"duration", r.result.Duration.Round(time.Millisecond))
	return r.result, ctx.Err()
}

// pause sleeps between batches, using the quota pause if the previous batch
// ran into an exhausted quota.
func (r *run) pause(ctx context.Context) error {
	wait := r.opts.BatchPause
	if r.quotaHit.Swap(false) {
		wait = r.opts.QuotaPause
		observability.Crawl().OnQuotaPause(ctx, wait)
		r.logger.Warn("quota exhausted, pausing", "wait", wait)
	} else {
		r.logger.Debug("pausing between batches", "wait", wait)
	}
	return r.opts.Sleep(ctx, wait)
}

// runBatch scans repos with bounded concurrency. Once a scan reports an
// exhausted quota no further scans start; the repositories left over are
// returned in their original order.
func (r *run) runBatch(ctx context.Context, n, total int, repos []string) []string {
	start := time.Now()
	skipped := make([]bool, len(repos))
	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, repo := range repos {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if r.quotaHit.Load() {
				skipped[i] = true
				return nil
			}
			r.scanOne(ctx, repo)
			return nil
		})
	}
	_ = g.Wait()

	var deferred []string
	for i, repo := range repos {
		if skipped[i] {
			deferred = append(deferred, repo)
		}
	}
	if len(deferred) > 0 {
		r.logger.Info("deferring scans until the quota recovers", "batch", n, "repos", len(deferred))
	}

	r.mu.Lock()
	r.result.Batches++
	r.mu.Unlock()
	d := time.Since(start)
	observability.Crawl().OnBatchComplete(ctx, n, total, d)
	r.logger.Info("batch complete", "batch", n, "of", total, "repos", len(repos)-len(deferred),
		"duration", d.Round(time.Millisecond))
	return deferred
}

func (r *run) scanOne(ctx context.Context, repo string) {
	hooks := observability.Crawl()
	hooks.OnScanStart(ctx, repo)
	start := time.Now()

	deps, err := r.scanner.Scan(ctx, repo, r.opts.MaxDepth)
	hooks.OnScanComplete(ctx, repo, len(deps), time.Since(start), err)

	switch {
	case err == nil:
	case ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
		// Interrupted scans stay pending for the next run.
		r.logger.Debug("scan interrupted", "repo", repo)
		return
	case orgerrors.Is(err, orgerrors.ErrCodeQuotaExhausted):
		r.quotaHit.Store(true)
		r.logger.Warn("scan gave up on exhausted quota", "repo", repo, "err", err)
		deps = nil
	default:
		r.logger.Error("scan failed", "repo", repo, "err", err)
		deps = nil
	}
	if deps == nil {
		deps = []string{}
	}

	// A finished scan is recorded even when the run is being cancelled.
	if perr := r.store.Put(context.WithoutCancel(ctx), repo, deps); perr != nil {
		r.logger.Error("checkpoint write failed", "repo", repo, "err", perr)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Dependencies[repo] = deps
	switch {
	case err == nil:
		r.result.Scanned++
		r.logger.Debug("scanned", "repo", repo, "deps", len(deps), "duration", time.Since(start).Round(time.Millisecond))
	case orgerrors.Is(err, orgerrors.ErrCodeQuotaExhausted):
		r.result.QuotaExhausted++
	default:
		r.result.Failed++
	}
}

func batchCount(n, size int) int {
	return (n + size - 1) / size
}
