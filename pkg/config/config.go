// Package config defines the orgraph configuration and its defaults.
//
// A [Config] is built once at startup, by [Load] from an optional file plus
// ORGRAPH_* environment variables, and then passed to each component's
// constructor. Nothing in orgraph reads configuration from globals.
package config

import (
	"time"

	"github.com/matzehuels/orgraph/pkg/cache"
	"github.com/matzehuels/orgraph/pkg/checkpoint"
	"github.com/matzehuels/orgraph/pkg/crawl"
	"github.com/matzehuels/orgraph/pkg/github"
	"github.com/matzehuels/orgraph/pkg/scanner"
)

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Checkpoint backends.
const (
	CheckpointFile  = "file"
	CheckpointMongo = "mongo"
)

// Log formats.
const (
	LogText = "text"
	LogJSON = "json"
)

// DefaultOutputPath is where the graph document is written.
const DefaultOutputPath = "dependencies.json"

// Config is the complete orgraph configuration.
type Config struct {
	GitHub     GitHubConfig     `mapstructure:"github"`
	Scan       ScanConfig       `mapstructure:"scan"`
	Crawl      CrawlConfig      `mapstructure:"crawl"`
	Graph      GraphConfig      `mapstructure:"graph"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	Output     OutputConfig     `mapstructure:"output"`
	S3         S3Config         `mapstructure:"s3"`
	Log        LogConfig        `mapstructure:"log"`
}

// GitHubConfig selects the organization and API endpoint.
type GitHubConfig struct {
	Org             string        `mapstructure:"org"`
	Token           string        `mapstructure:"token"`
	BaseURL         string        `mapstructure:"base_url"`
	PerPage         int           `mapstructure:"per_page"`
	RepoLimit       int           `mapstructure:"repo_limit"` // 0 lists every repository
	Timeout         time.Duration `mapstructure:"timeout"`
	IncludeArchived bool          `mapstructure:"include_archived"`
	IncludeForks    bool          `mapstructure:"include_forks"`
}

// ScanConfig bounds the work done per repository.
type ScanConfig struct {
	MaxDepth         int      `mapstructure:"max_depth"`
	ProbeConcurrency int      `mapstructure:"probe_concurrency"`
	SearchDirs       []string `mapstructure:"search_dirs"`
}

// CrawlConfig paces the crawl across repositories.
type CrawlConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	BatchSize   int           `mapstructure:"batch_size"`
	BatchPause  time.Duration `mapstructure:"batch_pause"`
	QuotaPause  time.Duration `mapstructure:"quota_pause"`
}

// GraphConfig defines what counts as internal.
type GraphConfig struct {
	InternalPrefix string `mapstructure:"internal_prefix"`
}

// CacheConfig selects the content cache backend.
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"`
	Dir           string        `mapstructure:"dir"` // Empty selects the user cache directory
	TTL           time.Duration `mapstructure:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
}

// CheckpointConfig selects where scan progress is kept.
type CheckpointConfig struct {
	Backend         string `mapstructure:"backend"`
	Path            string `mapstructure:"path"`
	MongoURI        string `mapstructure:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection"`
}

// OutputConfig lists the files written after a crawl.
type OutputConfig struct {
	Path    string `mapstructure:"path"`
	DOTPath string `mapstructure:"dot_path"` // Optional
	SVGPath string `mapstructure:"svg_path"` // Optional
}

// S3Config enables uploading the graph. An empty bucket disables it.
type S3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Key      string `mapstructure:"key"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	return &Config{
		GitHub: GitHubConfig{
			BaseURL: github.DefaultBaseURL,
			PerPage: github.DefaultPerPage,
			Timeout: github.DefaultTimeout,
		},
		Scan: ScanConfig{
			MaxDepth:         scanner.DefaultMaxDepth,
			ProbeConcurrency: scanner.DefaultProbeConcurrency,
			SearchDirs:       scanner.DefaultSearchDirs,
		},
		Crawl: CrawlConfig{
			Concurrency: crawl.DefaultConcurrency,
			BatchSize:   crawl.DefaultBatchSize,
			BatchPause:  crawl.DefaultBatchPause,
			QuotaPause:  crawl.DefaultQuotaPause,
		},
		Cache: CacheConfig{
			Backend: CacheFile,
			TTL:     cache.DefaultTTL,
		},
		Checkpoint: CheckpointConfig{
			Backend:         CheckpointFile,
			Path:            checkpoint.DefaultPath,
			MongoDatabase:   checkpoint.DefaultMongoDatabase,
			MongoCollection: checkpoint.DefaultMongoCollection,
		},
		Output: OutputConfig{
			Path: DefaultOutputPath,
		},
		S3: S3Config{
			Key:    DefaultOutputPath,
			Region: "us-east-1",
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogText,
		},
	}
}
