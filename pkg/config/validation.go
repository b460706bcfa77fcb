package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	orgerrors "github.com/matzehuels/orgraph/pkg/errors"
)

// ValidationError is one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid field.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks values and backend choices. It does not require an
// organization, since offline commands work without one; see [Config.RequireOrg].
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.GitHub.PerPage < 1 || c.GitHub.PerPage > 100 {
		add("github.per_page", "must be between 1 and 100, got %d", c.GitHub.PerPage)
	}
	if c.GitHub.RepoLimit < 0 {
		add("github.repo_limit", "must not be negative")
	}
	if c.GitHub.Timeout <= 0 {
		add("github.timeout", "must be positive")
	}
	if err := orgerrors.ValidateURL(c.GitHub.BaseURL); err != nil {
		add("github.base_url", "%v", err)
	}

	if c.Scan.MaxDepth < 0 {
		add("scan.max_depth", "must not be negative")
	}
	if c.Scan.ProbeConcurrency < 1 {
		add("scan.probe_concurrency", "must be at least 1")
	}

	if c.Crawl.Concurrency < 1 {
		add("crawl.concurrency", "must be at least 1")
	}
	if c.Crawl.BatchSize < 1 {
		add("crawl.batch_size", "must be at least 1")
	}
	if c.Crawl.BatchPause < 0 || c.Crawl.QuotaPause < 0 {
		add("crawl", "pauses must not be negative")
	}

	if c.Graph.InternalPrefix == "" {
		add("graph.internal_prefix", "is required (e.g. \"@acme/\")")
	}

	switch c.Cache.Backend {
	case CacheFile, CacheNone:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			add("cache.redis_addr", "is required for the redis backend")
		}
	default:
		add("cache.backend", "must be one of file, redis, none; got %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		add("cache.ttl", "must be positive")
	}

	switch c.Checkpoint.Backend {
	case CheckpointFile:
		if c.Checkpoint.Path == "" {
			add("checkpoint.path", "is required for the file backend")
		}
	case CheckpointMongo:
		if c.Checkpoint.MongoURI == "" {
			add("checkpoint.mongo_uri", "is required for the mongo backend")
		}
	default:
		add("checkpoint.backend", "must be one of file, mongo; got %q", c.Checkpoint.Backend)
	}

	if c.Output.Path == "" {
		add("output.path", "is required")
	}
	if c.S3.Bucket != "" && c.S3.Key == "" {
		add("s3.key", "is required when a bucket is set")
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		add("log.level", "%v", err)
	}
	if !slices.Contains([]string{LogText, LogJSON}, c.Log.Format) {
		add("log.format", "must be text or json, got %q", c.Log.Format)
	}

	if len(errs) > 0 {
		return orgerrors.Wrap(orgerrors.ErrCodeInvalidConfig, errs, "invalid configuration")
	}
	return nil
}

// RequireOrg checks the settings needed to talk to GitHub.
func (c *Config) RequireOrg() error {
	if c.GitHub.Org == "" {
		return orgerrors.New(orgerrors.ErrCodeInvalidConfig, "github.org is required (--org or ORGRAPH_GITHUB_ORG)")
	}
	return orgerrors.ValidateOrgName(c.GitHub.Org)
}
