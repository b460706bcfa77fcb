package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/orgraph/pkg/github"
	"github.com/matzehuels/orgraph/pkg/observability"
)

// DefaultTTL is how long fetched file contents are trusted.
const DefaultTTL = 24 * time.Hour

// retainFactor controls how long the backend keeps an entry past its TTL.
// Stale entries are never served but may still be inspected or overwritten.
const retainFactor = 7

const keyTypeContent = "content"

// Entry is a cached file body.
type Entry struct {
	Content     string    `json:"content"`
	ChangeToken string    `json:"change_token"` // blob SHA reported by the API
	WrittenAt   time.Time `json:"written_at"`
}

// ContentOptions configures a [ContentCache].
type ContentOptions struct {
	TTL    time.Duration // Defaults to [DefaultTTL]
	Keyer  Keyer         // Defaults to [DefaultKeyer]
	Logger *log.Logger
	Now    func() time.Time
}

// ContentCache stores file contents by (repository, path).
// Backend failures degrade to misses and are logged, never returned.
type ContentCache struct {
	backend Cache
	ttl     time.Duration
	keyer   Keyer
	logger  *log.Logger
	now     func() time.Time
}

// NewContentCache wraps backend. A nil backend disables caching.
func NewContentCache(backend Cache, opts ContentOptions) *ContentCache {
	if backend == nil {
		backend = NewNullCache()
	}
	c := &ContentCache{
		backend: backend,
		ttl:     opts.TTL,
		keyer:   opts.Keyer,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.keyer == nil {
		c.keyer = NewDefaultKeyer()
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// TTL returns the freshness window.
func (c *ContentCache) TTL() time.Duration { return c.ttl }

// Get returns the entry for (repo, path) if one exists and is younger than the TTL.
func (c *ContentCache) Get(ctx context.Context, repo, path string) (*Entry, bool) {
	hooks := observability.Cache()
	data, ok, err := c.backend.Get(ctx, c.keyer.ContentKey(repo, path))
	if err != nil {
		c.logger.Warn("cache read failed", "repo", repo, "path", path, "err", err)
	}
	if err != nil || !ok {
		hooks.OnCacheMiss(ctx, keyTypeContent)
		return nil, false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Debug("ignoring corrupt cache entry", "repo", repo, "path", path, "err", err)
		hooks.OnCacheMiss(ctx, keyTypeContent)
		return nil, false
	}
	if c.now().Sub(e.WrittenAt) > c.ttl {
		hooks.OnCacheMiss(ctx, keyTypeContent)
		return nil, false
	}
	hooks.OnCacheHit(ctx, keyTypeContent)
	return &e, true
}

// Put records content for (repo, path), stamped with the current time.
func (c *ContentCache) Put(ctx context.Context, repo, path, content, changeToken string) {
	data, err := json.Marshal(Entry{
		Content:     content,
		ChangeToken: changeToken,
		WrittenAt:   c.now(),
	})
	if err != nil {
		c.logger.Warn("cache encode failed", "repo", repo, "path", path, "err", err)
		return
	}
	if err := c.backend.Set(ctx, c.keyer.ContentKey(repo, path), data, c.ttl*retainFactor); err != nil {
		c.logger.Warn("cache write failed", "repo", repo, "path", path, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyTypeContent, len(data))
}

// Fetcher is the subset of the GitHub client the scanner needs.
type Fetcher interface {
	FetchFile(ctx context.Context, repo, path string) (*github.FileContent, error)
	ListDir(ctx context.Context, repo, path string) ([]github.ContentItem, error)
}

// CachedFetcher serves FetchFile from a [ContentCache] and falls through to
// the wrapped Fetcher on a miss. Missing files are not cached. Directory
// listings always go to the wrapped Fetcher.
type CachedFetcher struct {
	inner Fetcher
	cache *ContentCache
}

// NewCachedFetcher wraps inner with cc.
func NewCachedFetcher(inner Fetcher, cc *ContentCache) *CachedFetcher {
	return &CachedFetcher{inner: inner, cache: cc}
}

// FetchFile returns the cached file when fresh, otherwise fetches and stores it.
func (f *CachedFetcher) FetchFile(ctx context.Context, repo, path string) (*github.FileContent, error) {
	if e, ok := f.cache.Get(ctx, repo, path); ok {
		return &github.FileContent{
			Path:    path,
			Size:    len(e.Content),
			SHA:     e.ChangeToken,
			Content: e.Content,
		}, nil
	}

	file, err := f.inner.FetchFile(ctx, repo, path)
	if err != nil || file == nil {
		return file, err
	}
	f.cache.Put(ctx, repo, path, file.Content, file.SHA)
	return file, nil
}

// ListDir delegates to the wrapped Fetcher.
func (f *CachedFetcher) ListDir(ctx context.Context, repo, path string) ([]github.ContentItem, error) {
	return f.inner.ListDir(ctx, repo, path)
}
