package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	orgerrors "github.com/matzehuels/orgraph/pkg/errors"
)

// EnvPrefix prefixes every environment variable, e.g. ORGRAPH_GITHUB_ORG.
const EnvPrefix = "ORGRAPH"

// Load builds a Config from defaults, the optional file at path (YAML, TOML
// or JSON by extension) and ORGRAPH_* environment variables, in increasing
// precedence. GITHUB_TOKEN is used when no token is configured.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, orgerrors.Wrap(orgerrors.ErrCodeInvalidConfig, err, "read config file %s", path)
		}
	}
	return LoadFromViper(v)
}

// LoadFromViper creates a Config from an existing Viper instance.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, orgerrors.Wrap(orgerrors.ErrCodeInvalidConfig, err, "decode config")
	}
	substituteEnvVars(cfg)
	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it even when
// no config file mentions it.
func setDefaults(v *viper.Viper, d *Config) {
	defaults := map[string]any{
		"github.org":                  d.GitHub.Org,
		"github.token":                d.GitHub.Token,
		"github.base_url":             d.GitHub.BaseURL,
		"github.per_page":             d.GitHub.PerPage,
		"github.repo_limit":           d.GitHub.RepoLimit,
		"github.timeout":              d.GitHub.Timeout,
		"github.include_archived":     d.GitHub.IncludeArchived,
		"github.include_forks":        d.GitHub.IncludeForks,
		"scan.max_depth":              d.Scan.MaxDepth,
		"scan.probe_concurrency":      d.Scan.ProbeConcurrency,
		"scan.search_dirs":            d.Scan.SearchDirs,
		"crawl.concurrency":           d.Crawl.Concurrency,
		"crawl.batch_size":            d.Crawl.BatchSize,
		"crawl.batch_pause":           d.Crawl.BatchPause,
		"crawl.quota_pause":           d.Crawl.QuotaPause,
		"graph.internal_prefix":       d.Graph.InternalPrefix,
		"cache.backend":               d.Cache.Backend,
		"cache.dir":                   d.Cache.Dir,
		"cache.ttl":                   d.Cache.TTL,
		"cache.redis_addr":            d.Cache.RedisAddr,
		"cache.redis_password":        d.Cache.RedisPassword,
		"cache.redis_db":              d.Cache.RedisDB,
		"checkpoint.backend":          d.Checkpoint.Backend,
		"checkpoint.path":             d.Checkpoint.Path,
		"checkpoint.mongo_uri":        d.Checkpoint.MongoURI,
		"checkpoint.mongo_database":   d.Checkpoint.MongoDatabase,
		"checkpoint.mongo_collection": d.Checkpoint.MongoCollection,
		"output.path":                 d.Output.Path,
		"output.dot_path":             d.Output.DOTPath,
		"output.svg_path":             d.Output.SVGPath,
		"s3.bucket":                   d.S3.Bucket,
		"s3.key":                      d.S3.Key,
		"s3.region":                   d.S3.Region,
		"s3.endpoint":                 d.S3.Endpoint,
		"log.level":                   d.Log.Level,
		"log.format":                  d.Log.Format,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars expands references to environment variables in secrets
// and connection strings, so config files can stay free of credentials.
func substituteEnvVars(cfg *Config) {
	cfg.GitHub.Token = expandEnvVar(cfg.GitHub.Token)
	cfg.Cache.RedisAddr = expandEnvVar(cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = expandEnvVar(cfg.Cache.RedisPassword)
	cfg.Checkpoint.MongoURI = expandEnvVar(cfg.Checkpoint.MongoURI)
}

// expandEnvVar expands ${VAR} and $VAR. Unknown variables are left as is.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var name string
		if strings.HasPrefix(match, "${") {
			name = match[2 : len(match)-1]
		} else {
			name = match[1:]
		}
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

// String renders the config with secrets masked.
func (c *Config) String() string {
	masked := *c
	masked.GitHub.Token = mask(c.GitHub.Token)
	masked.Cache.RedisPassword = mask(c.Cache.RedisPassword)
	if c.Checkpoint.MongoURI != "" {
		masked.Checkpoint.MongoURI = "***"
	}
	return fmt.Sprintf("%+v", masked)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
