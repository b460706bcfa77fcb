package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/orgraph/pkg/github"
)

type fakeFetcher struct {
	files     map[string]*github.FileContent
	fileCalls int
	dirCalls  int
	err       error
}

func (f *fakeFetcher) FetchFile(_ context.Context, repo, path string) (*github.FileContent, error) {
	f.fileCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.files[repo+"/"+path], nil
}

func (f *fakeFetcher) ListDir(context.Context, string, string) ([]github.ContentItem, error) {
	f.dirCalls++
	return []github.ContentItem{{Name: "packages", Path: "packages", Type: "dir"}}, nil
}

type failingCache struct{ NullCache }

func (failingCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("backend down")
}

func (failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("backend down")
}

func newTestContentCache(t *testing.T, now *time.Time) (*ContentCache, *FileCache) {
	t.Helper()
	backend, err := NewFileCache(t.TempDir())
	require.NoError(t, err)
	cc := NewContentCache(backend, ContentOptions{
		TTL: 24 * time.Hour,
		Now: func() time.Time { return *now },
	})
	return cc, backend
}

func TestContentCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cc, _ := newTestContentCache(t, &now)

	cc.Put(ctx, "svc-a", "package.json", `{"name":"a"}`, "abc123")

	now = now.Add(time.Hour)
	e, ok := cc.Get(ctx, "svc-a", "package.json")
	require.True(t, ok)
	assert.Equal(t, `{"name":"a"}`, e.Content)
	assert.Equal(t, "abc123", e.ChangeToken)

	_, ok = cc.Get(ctx, "svc-a", "Gemfile")
	assert.False(t, ok)
}

func TestContentCache_ExpiredEntryStillStored(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cc, backend := newTestContentCache(t, &now)

	cc.Put(ctx, "svc-a", "package.json", "{}", "sha")

	now = now.Add(25 * time.Hour)
	_, ok := cc.Get(ctx, "svc-a", "package.json")
	assert.False(t, ok, "entry older than the TTL must not be returned")

	_, stored, err := backend.Get(ctx, NewDefaultKeyer().ContentKey("svc-a", "package.json"))
	require.NoError(t, err)
	assert.True(t, stored, "stale entry remains in the backend")
}

func TestContentCache_BackendFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	cc := NewContentCache(&failingCache{}, ContentOptions{})

	cc.Put(ctx, "svc-a", "package.json", "{}", "sha")
	_, ok := cc.Get(ctx, "svc-a", "package.json")
	assert.False(t, ok)
}

func TestContentCache_CorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	backend, err := NewFileCache(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, backend.Set(ctx, NewDefaultKeyer().ContentKey("r", "p"), []byte("garbage"), 0))

	cc := NewContentCache(backend, ContentOptions{})
	_, ok := cc.Get(ctx, "r", "p")
	assert.False(t, ok)
}

func TestCachedFetcher(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cc, _ := newTestContentCache(t, &now)
	inner := &fakeFetcher{files: map[string]*github.FileContent{
		"svc-a/package.json": {Path: "package.json", SHA: "s1", Content: "{}"},
	}}
	f := NewCachedFetcher(inner, cc)

	for range 3 {
		file, err := f.FetchFile(ctx, "svc-a", "package.json")
		require.NoError(t, err)
		require.NotNil(t, file)
		assert.Equal(t, "{}", file.Content)
		assert.Equal(t, "s1", file.SHA)
	}
	assert.Equal(t, 1, inner.fileCalls, "hits short-circuit the network")

	now = now.Add(48 * time.Hour)
	_, err := f.FetchFile(ctx, "svc-a", "package.json")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.fileCalls, "expired entries are refetched")
}

func TestCachedFetcher_MissingFilesNotCached(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	cc, _ := newTestContentCache(t, &now)
	inner := &fakeFetcher{}
	f := NewCachedFetcher(inner, cc)

	for range 2 {
		file, err := f.FetchFile(ctx, "svc-a", "Gemfile")
		require.NoError(t, err)
		assert.Nil(t, file)
	}
	assert.Equal(t, 2, inner.fileCalls)
}

func TestCachedFetcher_ErrorsPassThrough(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	cc, _ := newTestContentCache(t, &now)
	boom := errors.New("boom")
	f := NewCachedFetcher(&fakeFetcher{err: boom}, cc)

	_, err := f.FetchFile(ctx, "svc-a", "package.json")
	assert.ErrorIs(t, err, boom)
}

func TestCachedFetcher_ListDirNotCached(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	cc, _ := newTestContentCache(t, &now)
	inner := &fakeFetcher{}
	f := NewCachedFetcher(inner, cc)

	for range 2 {
		items, err := f.ListDir(ctx, "mono", "")
		require.NoError(t, err)
		assert.Len(t, items, 1)
	}
	assert.Equal(t, 2, inner.dirCalls)
}
