package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/orgraph/pkg/checkpoint"
	"github.com/matzehuels/orgraph/pkg/crawl"
	"github.com/matzehuels/orgraph/pkg/github"
	"github.com/matzehuels/orgraph/pkg/graph"
	"github.com/matzehuels/orgraph/pkg/publish"
)

type fakeLister struct {
	repos []github.Repo
	err   error
}

func (f fakeLister) ListOrgRepos(context.Context, int) ([]github.Repo, error) {
	return f.repos, f.err
}

type fakeScanner struct {
	deps   map[string][]string
	cancel context.CancelFunc // called after the first scan
}

func (f *fakeScanner) Scan(ctx context.Context, repo string, _ int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.cancel != nil {
		defer f.cancel()
	}
	return f.deps[repo], nil
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newRunner(t *testing.T, lister Lister, scanner crawl.Scanner) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := checkpoint.NewFileStore(filepath.Join(dir, "progress.json"), nil)
	require.NoError(t, err)
	out := filepath.Join(dir, "dependencies.json")
	return &Runner{
		Lister:     lister,
		Scanner:    scanner,
		Store:      store,
		Builder:    graph.NewBuilder("@org/", nil),
		Publishers: []publish.Publisher{publish.File{Path: out}},
	}, out
}

func readGraph(t *testing.T, path string) *graph.Graph {
	t.Helper()
	g, err := graph.ReadFile(path)
	require.NoError(t, err)
	return g
}

func TestExecute(t *testing.T) {
	lister := fakeLister{repos: []github.Repo{
		{Name: "svcA"},
		{Name: "svcB"},
		{Name: "old", Archived: true},
		{Name: "forked", Fork: true},
	}}
	scanner := &fakeScanner{deps: map[string][]string{
		"svcA": {"@org/libX", "@org/libY", "left-pad"},
		"svcB": {"@org/libX"},
	}}
	r, out := newRunner(t, lister, scanner)

	res, err := r.Execute(context.Background(), Options{Crawl: crawl.Options{Sleep: noSleep}})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Repositories)
	assert.Equal(t, 2, res.Crawl.Scanned)
	assert.Equal(t, 4, res.Summary.Nodes)
	assert.Equal(t, 3, res.Summary.Links)
	assert.Contains(t, res.Artifacts, FormatJSON)
	assert.NotContains(t, res.Artifacts, FormatDOT)

	g := readGraph(t, out)
	assert.Equal(t, res.Graph.Nodes, g.Nodes)
	assert.Equal(t, []graph.Link{
		{Source: "svcA", Target: "@org/libX", Count: 2},
		{Source: "svcA", Target: "@org/libY", Count: 1},
		{Source: "svcB", Target: "@org/libX", Count: 2},
	}, g.Links)
}

func TestExecute_InterruptedStillEmits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lister := fakeLister{repos: []github.Repo{{Name: "a"}, {Name: "b"}, {Name: "c"}}}
	scanner := &fakeScanner{deps: map[string][]string{"a": {"@org/x"}}, cancel: cancel}
	r, out := newRunner(t, lister, scanner)

	res, err := r.Execute(ctx, Options{Crawl: crawl.Options{Concurrency: 1, BatchSize: 1, Sleep: noSleep}})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)

	g := readGraph(t, out)
	ids := make([]string, len(g.Nodes))
	for i, n := range g.Nodes {
		ids[i] = n.ID
	}
	assert.Equal(t, []string{"a", "@org/x"}, ids, "only the finished scan is in the graph")
}

func TestExecute_ListFailureRebuildsFromCheckpoint(t *testing.T) {
	r, out := newRunner(t, fakeLister{err: errors.New("boom")}, &fakeScanner{})
	require.NoError(t, r.Store.Put(context.Background(), "svc", []string{"@org/lib"}))

	res, err := r.Execute(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list repositories")
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Summary.Nodes)
	assert.Len(t, readGraph(t, out).Links, 1)
}

func TestExecute_RequiresLister(t *testing.T) {
	r := &Runner{}
	_, err := r.Execute(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrNoLister)
}

func TestRebuild_WritesEveryFormat(t *testing.T) {
	if testing.Short() {
		t.Skip("renders with graphviz")
	}
	r, out := newRunner(t, nil, nil)
	ctx := context.Background()
	require.NoError(t, r.Store.Put(ctx, "svc", []string{"@org/lib"}))

	dir := filepath.Dir(out)
	opts := Options{
		DOTPath: filepath.Join(dir, "graph.dot"),
		SVGPath: filepath.Join(dir, "graph.svg"),
	}
	res, err := r.Rebuild(ctx, opts)
	require.NoError(t, err)
	assert.Nil(t, res.Crawl)

	dot, err := os.ReadFile(opts.DOTPath)
	require.NoError(t, err)
	assert.Contains(t, string(dot), `"svc" -> "@org/lib"`)

	svg, err := os.ReadFile(opts.SVGPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(svg), "<svg"))

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(res.Artifacts[FormatJSON], &doc))
	assert.Contains(t, doc, "nodes")
	assert.Contains(t, doc, "links")
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, []byte) error { return errors.New("offline") }
func (failingPublisher) String() string                       { return "remote" }

func TestEmit_PublishFailureKeepsLocalFile(t *testing.T) {
	r, out := newRunner(t, nil, nil)
	r.Publishers = append([]publish.Publisher{failingPublisher{}}, r.Publishers...)

	_, err := r.Emit(context.Background(), graph.Empty(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish to remote")

	g := readGraph(t, out)
	assert.Empty(t, g.Nodes)
}
