package scanner

import (
	"context"
	"errors"
	"path"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orgerrors "github.com/matzehuels/orgraph/pkg/errors"
	"github.com/matzehuels/orgraph/pkg/github"
)

// memFetcher serves a repository tree from memory and records every call.
type memFetcher struct {
	files map[string]string // full path -> content
	fail  map[string]error  // full path -> error returned for that path

	mu        sync.Mutex
	listed    []string
	fetched   []string
	listCount map[string]int
}

func newMemFetcher(files map[string]string) *memFetcher {
	return &memFetcher{files: files, fail: map[string]error{}, listCount: map[string]int{}}
}

func (m *memFetcher) FetchFile(_ context.Context, _, p string) (*github.FileContent, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, p)
	m.mu.Unlock()
	if err := m.fail[p]; err != nil {
		return nil, err
	}
	content, ok := m.files[p]
	if !ok {
		return nil, nil
	}
	return &github.FileContent{Path: p, Content: content}, nil
}

func (m *memFetcher) ListDir(_ context.Context, _, dir string) ([]github.ContentItem, error) {
	m.mu.Lock()
	m.listed = append(m.listed, dir)
	m.listCount[dir]++
	m.mu.Unlock()
	if err := m.fail[dir]; err != nil {
		return nil, err
	}

	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	seen := map[string]bool{}
	var items []github.ContentItem
	found := false
	for p := range m.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		found = true
		rest := strings.TrimPrefix(p, prefix)
		name, _, isDir := strings.Cut(rest, "/")
		if seen[name] {
			continue
		}
		seen[name] = true
		typ := "file"
		if isDir {
			typ = "dir"
		}
		items = append(items, github.ContentItem{Name: name, Path: path.Join(dir, name), Type: typ})
	}
	if !found {
		return nil, nil
	}
	slices.SortFunc(items, func(a, b github.ContentItem) int { return strings.Compare(a.Name, b.Name) })
	return items, nil
}

func pkgJSON(deps ...string) string {
	var b strings.Builder
	b.WriteString(`{"dependencies":{`)
	for i, d := range deps {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`"` + d + `":"1.0.0"`)
	}
	b.WriteString("}}")
	return b.String()
}

func TestScan_RootManifests(t *testing.T) {
	f := newMemFetcher(map[string]string{
		"package.json":     pkgJSON("@acme/lib1", "express"),
		"requirements.txt": "requests==2.0\n",
		"Gemfile":          `gem "rails"`,
	})

	deps, err := New(f, Options{}).Scan(context.Background(), "svc-a", -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"@acme/lib1", "express", "rails", "requests"}, deps)
}

func TestScan_FallbackFolders(t *testing.T) {
	f := newMemFetcher(map[string]string{
		"package.json":                   pkgJSON("root-dep"),
		"packages/api/package.json":      pkgJSON("@acme/api-dep"),
		"services/worker/go.mod":         "module x\n\nrequire github.com/acme/queue v1.0.0\n",
		"applications/web/app/Gemfile":   `gem "depth-two"`,
		"applications/web/app/x/Gemfile": `gem "too-deep"`,
		"docs/package.json":              pkgJSON("ignored"),
	})

	deps, err := New(f, Options{}).Scan(context.Background(), "mono", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"@acme/api-dep", "depth-two", "github.com/acme/queue", "root-dep"}, deps)
}

func TestScan_DepthBound(t *testing.T) {
	f := newMemFetcher(map[string]string{
		"packages/a/b/c/d/package.json": pkgJSON("deep"),
		"services/a/b/c/package.json":   pkgJSON("deep2"),
	})

	for _, maxDepth := range []int{0, 1, 2, 3} {
		f.listed = nil
		_, err := New(f, Options{}).Scan(context.Background(), "mono", maxDepth)
		require.NoError(t, err)
		for _, dir := range f.listed {
			depth := 0
			if dir != "" {
				depth = len(strings.Split(dir, "/"))
			}
			assert.LessOrEqual(t, depth, maxDepth, "listed %q with maxDepth %d", dir, maxDepth)
		}
	}
}

func TestScan_LernaWorkspace(t *testing.T) {
	f := newMemFetcher(map[string]string{
		"lerna.json":                  `{"packages": ["packages/*"]}`,
		"packages/api/package.json":   pkgJSON("@acme/lib1"),
		"packages/web/package.json":   pkgJSON("@acme/lib2", "react"),
		"packages/web/deep/Gemfile":   `gem "not-matched"`,
		"services/other/package.json": pkgJSON("not-in-workspace"),
	})

	deps, err := New(f, Options{}).Scan(context.Background(), "mono", -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"@acme/lib1", "@acme/lib2", "react"}, deps)

	for _, dir := range f.listed {
		assert.NotEqual(t, "services", dir, "walk must not enter non-matching subtrees")
		assert.NotEqual(t, "packages/web", dir, "walk must stop at the pattern depth")
	}
	for dir, n := range f.listCount {
		assert.Equal(t, 1, n, "directory %q listed more than once", dir)
	}
}

func TestScan_LernaDefaultPatterns(t *testing.T) {
	f := newMemFetcher(map[string]string{
		"lerna.json":              `{"version": "independent"}`,
		"packages/a/package.json": pkgJSON("a-dep"),
		"package.json":            pkgJSON("root-only"),
	})

	deps, err := New(f, Options{}).Scan(context.Background(), "mono", -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-dep"}, deps, "workspace config defines the scan universe")
}

func TestScan_PnpmDoubleStar(t *testing.T) {
	f := newMemFetcher(map[string]string{
		"pnpm-workspace.yaml":          "packages:\n  - 'libs/**'\n  - '.'\n",
		"package.json":                 pkgJSON("root-dep"),
		"libs/core/package.json":       pkgJSON("core-dep"),
		"libs/ui/buttons/package.json": pkgJSON("buttons-dep"),
		"apps/web/package.json":        pkgJSON("web-dep"),
	})

	deps, err := New(f, Options{}).Scan(context.Background(), "mono", -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"buttons-dep", "core-dep", "root-dep"}, deps)
}

func TestScan_NpmWorkspaces(t *testing.T) {
	f := newMemFetcher(map[string]string{
		"package.json":             `{"workspaces": ["apps/*"], "dependencies": {"root": "1"}}`,
		"apps/site/package.json":   pkgJSON("@acme/site-dep"),
		"packages/ignored/Gemfile": `gem "x"`,
	})

	deps, err := New(f, Options{}).Scan(context.Background(), "mono", -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"@acme/site-dep"}, deps)
	assert.Equal(t, 1, count(f.fetched, "package.json"), "root package.json fetched once per scan")
}

func TestScan_InvalidWorkspaceFallsBack(t *testing.T) {
	f := newMemFetcher(map[string]string{
		"lerna.json":                `{not json`,
		"package.json":              pkgJSON("root-dep"),
		"services/api/package.json": pkgJSON("api-dep"),
	})

	deps, err := New(f, Options{}).Scan(context.Background(), "mono", -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"api-dep", "root-dep"}, deps)
}

func TestScan_ProbeFailuresAreAbsorbed(t *testing.T) {
	f := newMemFetcher(map[string]string{
		"package.json":            pkgJSON("ok"),
		"pom.xml":                 "<project><dependencies>",
		"packages/a/package.json": pkgJSON("never-seen"),
	})
	f.fail["Gemfile"] = errors.New("connection reset")
	f.fail["packages"] = orgerrors.New(orgerrors.ErrCodeTimeout, "timed out")

	deps, err := New(f, Options{}).Scan(context.Background(), "svc", -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, deps)
}

func TestScan_QuotaExhaustedPropagates(t *testing.T) {
	f := newMemFetcher(map[string]string{"package.json": pkgJSON("x")})
	f.fail["requirements.txt"] = orgerrors.Wrap(orgerrors.ErrCodeQuotaExhausted,
		&orgerrors.RateLimitedError{StatusCode: 403}, "gave up")

	_, err := New(f, Options{}).Scan(context.Background(), "svc", -1)
	assert.True(t, orgerrors.Is(err, orgerrors.ErrCodeQuotaExhausted))
}

func TestScan_QuotaExhaustedOnWorkspaceProbe(t *testing.T) {
	f := newMemFetcher(nil)
	f.fail["lerna.json"] = orgerrors.New(orgerrors.ErrCodeQuotaExhausted, "gave up")

	_, err := New(f, Options{}).Scan(context.Background(), "svc", -1)
	assert.True(t, orgerrors.Is(err, orgerrors.ErrCodeQuotaExhausted))
}

func TestScan_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newMemFetcher(map[string]string{"package.json": pkgJSON("x")})
	_, err := New(f, Options{}).Scan(ctx, "svc", -1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScan_InvalidRepo(t *testing.T) {
	_, err := New(newMemFetcher(nil), Options{}).Scan(context.Background(), "../x", -1)
	assert.True(t, orgerrors.Is(err, orgerrors.ErrCodeInvalidInput))
}

func TestScan_EmptyRepository(t *testing.T) {
	deps, err := New(newMemFetcher(nil), Options{}).Scan(context.Background(), "empty", -1)
	require.NoError(t, err)
	assert.Empty(t, deps)
	assert.NotNil(t, deps)
}

func TestCouldMatch(t *testing.T) {
	tests := []struct {
		pattern string
		dir     string
		want    bool
	}{
		{"packages/*", "packages", true},
		{"packages/*", "apps", false},
		{"packages/*", "packages/a", true},
		{"packages/*", "packages/a/b", false},
		{"libs/**", "libs/a/b/c", true},
		{"*/src", "anything", true},
	}
	for _, tt := range tests {
		got := couldMatch(strings.Split(tt.pattern, "/"), strings.Split(tt.dir, "/"))
		assert.Equal(t, tt.want, got, "couldMatch(%q, %q)", tt.pattern, tt.dir)
	}
}

func count(list []string, s string) int {
	n := 0
	for _, v := range list {
		if v == s {
			n++
		}
	}
	return n
}
