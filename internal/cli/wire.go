package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/matzehuels/orgraph/pkg/cache"
	"github.com/matzehuels/orgraph/pkg/checkpoint"
	"github.com/matzehuels/orgraph/pkg/config"
	"github.com/matzehuels/orgraph/pkg/crawl"
	"github.com/matzehuels/orgraph/pkg/github"
	"github.com/matzehuels/orgraph/pkg/graph"
	"github.com/matzehuels/orgraph/pkg/pipeline"
	"github.com/matzehuels/orgraph/pkg/publish"
	"github.com/matzehuels/orgraph/pkg/scanner"
)

func (c *CLI) newGitHubClient() (*github.Client, error) {
	cfg := c.Config.GitHub
	if err := c.Config.RequireOrg(); err != nil {
		return nil, err
	}
	return github.NewClient(github.Options{
		Org:     cfg.Org,
		Token:   cfg.Token,
		BaseURL: cfg.BaseURL,
		PerPage: cfg.PerPage,
		Timeout: cfg.Timeout,
		Logger:  c.Logger,
	})
}

// verifyToken resolves the configured token to its account. Without a token
// there is nothing to check and requests use the unauthenticated quota.
func (c *CLI) verifyToken(ctx context.Context, client *github.Client) error {
	if c.Config.GitHub.Token == "" {
		c.Logger.Warn("no GitHub token configured; unauthenticated requests are limited to 60 per hour")
		return nil
	}
	user, err := client.FetchUser(ctx)
	if err != nil {
		return fmt.Errorf("verify GitHub token: %w", err)
	}
	c.Logger.Info("authenticated", "login", user.Login)
	return nil
}

// newCacheBackend opens the configured byte store. The caller closes it.
func (c *CLI) newCacheBackend(ctx context.Context) (cache.Cache, error) {
	cfg := c.Config.Cache
	switch cfg.Backend {
	case config.CacheNone:
		return cache.NewNullCache(), nil
	case config.CacheRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return cache.NewFileCache(c.cacheDir())
	}
}

func (c *CLI) cacheDir() string {
	if dir := c.Config.Cache.Dir; dir != "" {
		return dir
	}
	return cache.DefaultDir()
}

// newStore opens the configured checkpoint. The caller closes it.
func (c *CLI) newStore(ctx context.Context) (checkpoint.Store, error) {
	cfg := c.Config.Checkpoint
	if cfg.Backend == config.CheckpointMongo {
		return checkpoint.NewMongoStore(ctx, checkpoint.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
		})
	}
	return checkpoint.NewFileStore(cfg.Path, c.Logger)
}

func (c *CLI) newPublishers(ctx context.Context) ([]publish.Publisher, error) {
	pubs := []publish.Publisher{publish.File{Path: c.Config.Output.Path}}
	if s3cfg := c.Config.S3; s3cfg.Bucket != "" {
		p, err := publish.NewS3(ctx, publish.S3Config{
			Bucket:   s3cfg.Bucket,
			Key:      s3cfg.Key,
			Region:   s3cfg.Region,
			Endpoint: s3cfg.Endpoint,
		})
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}
	return pubs, nil
}

// components owns everything a pipeline run needs and releases it on close.
type components struct {
	runner  *pipeline.Runner
	closers []func() error
}

func (cs *components) close() error {
	var errs []error
	for i := len(cs.closers) - 1; i >= 0; i-- {
		errs = append(errs, cs.closers[i]())
	}
	return errors.Join(errs...)
}

// newRunner wires a pipeline runner. With online false the runner can only
// rebuild from the checkpoint, and no GitHub client or cache is created.
func (c *CLI) newRunner(ctx context.Context, online bool) (_ *components, err error) {
	if err := c.Config.Validate(); err != nil {
		return nil, err
	}
	cs := &components{runner: &pipeline.Runner{
		Builder: graph.NewBuilder(c.Config.Graph.InternalPrefix, c.Logger),
		Logger:  c.Logger,
	}}
	defer func() {
		if err != nil {
			cs.close()
		}
	}()

	store, err := c.newStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	cs.closers = append(cs.closers, store.Close)
	cs.runner.Store = store

	if cs.runner.Publishers, err = c.newPublishers(ctx); err != nil {
		return nil, err
	}
	if !online {
		return cs, nil
	}

	client, err := c.newGitHubClient()
	if err != nil {
		return nil, err
	}
	if err := c.verifyToken(ctx, client); err != nil {
		return nil, err
	}
	backend, err := c.newCacheBackend(ctx)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	cs.closers = append(cs.closers, backend.Close)

	contents := cache.NewContentCache(backend, cache.ContentOptions{
		TTL:    c.Config.Cache.TTL,
		Keyer:  cache.NewScopedKeyer(nil, "org:"+client.Org()+":"),
		Logger: c.Logger,
	})
	cs.runner.Lister = client
	cs.runner.Scanner = scanner.New(cache.NewCachedFetcher(client, contents), scanner.Options{
		MaxDepth:         c.Config.Scan.MaxDepth,
		SearchDirs:       c.Config.Scan.SearchDirs,
		ProbeConcurrency: c.Config.Scan.ProbeConcurrency,
		Logger:           c.Logger,
	})
	return cs, nil
}

// pipelineOptions translates the configuration into run options.
func (c *CLI) pipelineOptions() pipeline.Options {
	cfg := c.Config
	return pipeline.Options{
		RepoLimit:       cfg.GitHub.RepoLimit,
		IncludeArchived: cfg.GitHub.IncludeArchived,
		IncludeForks:    cfg.GitHub.IncludeForks,
		Crawl: crawl.Options{
			MaxDepth:    cfg.Scan.MaxDepth,
			Concurrency: cfg.Crawl.Concurrency,
			BatchSize:   cfg.Crawl.BatchSize,
			BatchPause:  cfg.Crawl.BatchPause,
			QuotaPause:  cfg.Crawl.QuotaPause,
			Logger:      c.Logger,
		},
		DOTPath: cfg.Output.DOTPath,
		SVGPath: cfg.Output.SVGPath,
	}
}
