// Package scanner discovers the dependencies declared anywhere in a repository.
//
// A scan first looks for a monorepo configuration (lerna.json,
// pnpm-workspace.yaml, package.json workspaces) and, when one declares package
// globs, probes every matching directory for manifests. Without such a config
// it probes the root and walks the conventional monorepo folders down to a
// bounded depth.
package scanner

import (
	"context"
	"errors"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	orgerrors "github.com/matzehuels/orgraph/pkg/errors"
	"github.com/matzehuels/orgraph/pkg/github"
	"github.com/matzehuels/orgraph/pkg/manifest"
)

const (
	DefaultMaxDepth         = 2
	DefaultProbeConcurrency = 4
	DefaultMaxGlobDepth     = 6
)

// DefaultSearchDirs are walked when a repository has no workspace config.
var DefaultSearchDirs = []string{"applications", "packages", "services"}

// Fetcher reads repository content. Both the GitHub client and the cached
// fetcher satisfy it.
type Fetcher interface {
	FetchFile(ctx context.Context, repo, path string) (*github.FileContent, error)
	ListDir(ctx context.Context, repo, path string) ([]github.ContentItem, error)
}

// Options configures a [Scanner].
type Options struct {
	MaxDepth         int      // Default recursion depth of the fallback walk
	SearchDirs       []string // Top-level folders walked by the fallback
	ProbeConcurrency int      // Concurrent fetches per repository
	MaxGlobDepth     int      // Deepest directory level considered for workspace globs
	Manifests        []string // File names probed in each directory
	Logger           *log.Logger
}

// Scanner finds manifests in a repository and parses them.
// It is safe for concurrent use; all per-scan state lives in the call.
type Scanner struct {
	fetcher Fetcher
	opts    Options
	logger  *log.Logger
}

// New creates a Scanner reading through f.
func New(f Fetcher, opts Options) *Scanner {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.SearchDirs == nil {
		opts.SearchDirs = DefaultSearchDirs
	}
	if opts.ProbeConcurrency <= 0 {
		opts.ProbeConcurrency = DefaultProbeConcurrency
	}
	if opts.MaxGlobDepth <= 0 {
		opts.MaxGlobDepth = DefaultMaxGlobDepth
	}
	if len(opts.Manifests) == 0 {
		opts.Manifests = manifest.Filenames()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Scanner{fetcher: f, opts: opts, logger: logger}
}

// Scan returns the sorted, deduplicated dependencies declared in repo.
// A negative maxDepth selects the configured default.
//
// Failures of individual probes are logged and skipped. Quota exhaustion and
// context cancellation abort the scan and are returned.
func (s *Scanner) Scan(ctx context.Context, repo string, maxDepth int) ([]string, error) {
	if err := orgerrors.ValidateRepoName(repo); err != nil {
		return nil, err
	}
	if maxDepth < 0 {
		maxDepth = s.opts.MaxDepth
	}

	sc := &scan{
		Scanner:  s,
		repo:     repo,
		maxDepth: maxDepth,
		sem:      semaphore.NewWeighted(int64(s.opts.ProbeConcurrency)),
		files:    make(map[string]*fileResult),
		dirs:     make(map[string]*dirResult),
		logger:   s.logger.With("repo", repo),
	}

	deps, err := sc.run(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(deps))
	for d := range deps {
		out = append(out, d)
	}
	slices.Sort(out)
	return out, nil
}

type set map[string]struct{}

func (s set) merge(o set) {
	for k := range o {
		s[k] = struct{}{}
	}
}

type fileResult struct {
	once sync.Once
	file *github.FileContent
	err  error
}

type dirResult struct {
	once  sync.Once
	items []github.ContentItem
	err   error
}

// scan holds the state of one Scan call.
type scan struct {
	*Scanner
	repo     string
	maxDepth int
	sem      *semaphore.Weighted
	logger   *log.Logger

	mu    sync.Mutex
	files map[string]*fileResult
	dirs  map[string]*dirResult
}

func (sc *scan) run(ctx context.Context) (set, error) {
	patterns, err := sc.workspacePatterns(ctx)
	if err != nil {
		return nil, err
	}
	if len(patterns) > 0 {
		sc.logger.Debug("workspace config found", "patterns", patterns)
		return sc.scanWorkspace(ctx, patterns)
	}
	return sc.fallback(ctx)
}

// workspacePatterns returns the globs of the first workspace config that is
// present and declares at least one pattern.
func (sc *scan) workspacePatterns(ctx context.Context) ([]string, error) {
	for _, name := range manifest.WorkspaceFiles() {
		f, err := sc.fetchFile(ctx, name)
		if err != nil {
			if isFatal(ctx, err) {
				return nil, err
			}
			sc.logger.Warn("workspace probe failed", "path", name, "err", err)
			continue
		}
		if f == nil {
			continue
		}
		patterns, err := manifest.ParseWorkspace(name, f.Content)
		if err != nil {
			sc.logger.Warn("invalid workspace config", "path", name,
				"err", orgerrors.Wrap(orgerrors.ErrCodeParseFailure, err, "parse %s", name))
			continue
		}
		if len(patterns) > 0 {
			return patterns, nil
		}
	}
	return nil, nil
}

// scanWorkspace probes every directory matching one of patterns.
func (sc *scan) scanWorkspace(ctx context.Context, patterns []string) (set, error) {
	matched := make(map[string]struct{})
	for _, p := range patterns {
		if p == "." {
			matched[""] = struct{}{}
			continue
		}
		dirs, err := sc.matchDirs(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, d := range dirs {
			matched[d] = struct{}{}
		}
	}

	dirs := make([]string, 0, len(matched))
	for d := range matched {
		dirs = append(dirs, d)
	}
	slices.Sort(dirs)
	return sc.probeDirs(ctx, dirs)
}

// matchDirs walks the tree from the root and returns directories whose path
// matches pattern. Subtrees that cannot lead to a match are not listed.
func (sc *scan) matchDirs(ctx context.Context, pattern string) ([]string, error) {
	patSegs := strings.Split(pattern, "/")
	limit := sc.opts.MaxGlobDepth
	if !slices.Contains(patSegs, "**") {
		limit = min(limit, len(patSegs))
	}

	var (
		mu      sync.Mutex
		matches []string
	)
	var walk func(ctx context.Context, dir string, depth int) error
	walk = func(ctx context.Context, dir string, depth int) error {
		items, err := sc.listDir(ctx, dir)
		if err != nil {
			return err
		}
		g, ctx := errgroup.WithContext(ctx)
		for _, item := range items {
			if !item.IsDir() {
				continue
			}
			child := path.Join(dir, item.Name)
			childDepth := depth + 1
			if ok, _ := doublestar.Match(pattern, child); ok {
				mu.Lock()
				matches = append(matches, child)
				mu.Unlock()
			}
			if childDepth >= limit || !couldMatch(patSegs, strings.Split(child, "/")) {
				continue
			}
			g.Go(func() error { return walk(ctx, child, childDepth) })
		}
		return g.Wait()
	}

	if err := walk(ctx, "", 0); err != nil {
		return nil, err
	}
	return matches, nil
}

// couldMatch reports whether some descendant of dir may match the pattern.
func couldMatch(patSegs, dirSegs []string) bool {
	for i, seg := range dirSegs {
		if i >= len(patSegs) {
			return false
		}
		if patSegs[i] == "**" {
			return true
		}
		if ok, _ := doublestar.Match(patSegs[i], seg); !ok {
			return false
		}
	}
	return true
}

// fallback probes the root and walks the conventional monorepo folders.
func (sc *scan) fallback(ctx context.Context) (set, error) {
	g, gctx := errgroup.WithContext(ctx)
	results := make([]set, 1+len(sc.opts.SearchDirs))

	g.Go(func() error {
		found, err := sc.probeDir(gctx, "")
		results[0] = found
		return err
	})
	for i, dir := range sc.opts.SearchDirs {
		g.Go(func() error {
			found, err := sc.explore(gctx, dir, 1)
			results[i+1] = found
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make(set)
	for _, r := range results {
		all.merge(r)
	}
	return all, nil
}

// explore lists dir, which sits depth levels below the root, probes each
// subdirectory and recurses while depth stays within maxDepth.
func (sc *scan) explore(ctx context.Context, dir string, depth int) (set, error) {
	if depth > sc.maxDepth {
		return nil, nil
	}
	items, err := sc.listDir(ctx, dir)
	if err != nil {
		return nil, err
	}

	var subdirs []string
	for _, item := range items {
		if item.IsDir() {
			subdirs = append(subdirs, path.Join(dir, item.Name))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make([]set, 2*len(subdirs))
	for i, sub := range subdirs {
		g.Go(func() error {
			found, err := sc.probeDir(gctx, sub)
			results[2*i] = found
			return err
		})
		g.Go(func() error {
			found, err := sc.explore(gctx, sub, depth+1)
			results[2*i+1] = found
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	own := make(set)
	for _, r := range results {
		own.merge(r)
	}
	return own, nil
}

func (sc *scan) probeDirs(ctx context.Context, dirs []string) (set, error) {
	g, gctx := errgroup.WithContext(ctx)
	results := make([]set, len(dirs))
	for i, dir := range dirs {
		g.Go(func() error {
			found, err := sc.probeDir(gctx, dir)
			results[i] = found
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	all := make(set)
	for _, r := range results {
		all.merge(r)
	}
	return all, nil
}

// probeDir fetches and parses every manifest file name in dir.
func (sc *scan) probeDir(ctx context.Context, dir string) (set, error) {
	g, gctx := errgroup.WithContext(ctx)
	results := make([][]string, len(sc.opts.Manifests))
	for i, name := range sc.opts.Manifests {
		p := path.Join(dir, name)
		g.Go(func() error {
			f, err := sc.fetchFile(gctx, p)
			if err != nil {
				if isFatal(gctx, err) {
					return err
				}
				sc.logger.Warn("probe failed", "path", p, "err", err)
				return nil
			}
			if f == nil {
				return nil
			}
			deps, err := manifest.ParseStrict(name, f.Content)
			if err != nil {
				sc.logger.Warn("manifest skipped", "path", p, "err", err)
				return nil
			}
			results[i] = deps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	found := make(set)
	for _, deps := range results {
		for _, d := range deps {
			found[d] = struct{}{}
		}
	}
	return found, nil
}

// fetchFile fetches each path at most once per scan.
func (sc *scan) fetchFile(ctx context.Context, p string) (*github.FileContent, error) {
	sc.mu.Lock()
	r, ok := sc.files[p]
	if !ok {
		r = &fileResult{}
		sc.files[p] = r
	}
	sc.mu.Unlock()

	r.once.Do(func() {
		if err := sc.sem.Acquire(ctx, 1); err != nil {
			r.err = err
			return
		}
		defer sc.sem.Release(1)
		r.file, r.err = sc.fetcher.FetchFile(ctx, sc.repo, p)
	})
	return r.file, r.err
}

// listDir lists each directory at most once per scan. Non-fatal failures are
// logged and yield an empty listing.
func (sc *scan) listDir(ctx context.Context, dir string) ([]github.ContentItem, error) {
	sc.mu.Lock()
	r, ok := sc.dirs[dir]
	if !ok {
		r = &dirResult{}
		sc.dirs[dir] = r
	}
	sc.mu.Unlock()

	r.once.Do(func() {
		if err := sc.sem.Acquire(ctx, 1); err != nil {
			r.err = err
			return
		}
		defer sc.sem.Release(1)
		r.items, r.err = sc.fetcher.ListDir(ctx, sc.repo, dir)
	})
	if r.err != nil {
		if isFatal(ctx, r.err) {
			return nil, r.err
		}
		sc.logger.Warn("listing failed", "path", dir, "err", r.err)
		return nil, nil
	}
	return r.items, nil
}

// isFatal reports errors that must abort the whole scan: quota exhaustion and
// cancellation of the scan itself. A single request timing out is not fatal.
func isFatal(ctx context.Context, err error) bool {
	if orgerrors.Is(err, orgerrors.ErrCodeQuotaExhausted) {
		return true
	}
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
