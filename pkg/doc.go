// Package pkg provides the libraries behind orgraph, an organization-wide
// internal dependency graph crawler.
//
// # Overview
//
// orgraph visits every repository of a GitHub organization, collects the
// dependencies each one declares (package.json, requirements.txt,
// pyproject.toml, go.mod, Cargo.toml, Gemfile, pom.xml, including every
// package of a monorepo workspace) and builds a graph of how the
// organization's internal packages depend on each other.
//
// # Architecture
//
// The data flow of one run:
//
//	GitHub organization listing ([github])
//	         ↓
//	    [crawl] batches, bounded concurrency, quota pauses
//	         ↓
//	    [scanner] workspace globs or bounded folder walk per repository
//	         ↓  (file contents through [cache])
//	    [manifest] parsers
//	         ↓
//	    [checkpoint] one record per scanned repository
//	         ↓
//	    [graph] counts, depths, links
//	         ↓
//	    [publish] dependencies.json on disk and optionally S3
//
// [pipeline] ties the stages together; the CLI in internal/cli builds a
// [pipeline.Runner] from [config.Config].
//
// # Quick Start
//
//	client, _ := github.NewClient(github.Options{Org: "acme", Token: token})
//	store, _ := checkpoint.NewFileStore("progress.json", nil)
//
//	runner := &pipeline.Runner{
//	    Lister:     client,
//	    Scanner:    scanner.New(client, scanner.Options{}),
//	    Store:      store,
//	    Builder:    graph.NewBuilder("@acme/", nil),
//	    Publishers: []publish.Publisher{publish.File{Path: "dependencies.json"}},
//	}
//	res, err := runner.Execute(ctx, pipeline.Options{})
//
// # Supporting Packages
//
//   - [errors]: coded errors (QUOTA_EXHAUSTED, NOT_FOUND, ...) and input validation
//   - [httputil]: exponential backoff with reset hints
//   - [observability]: crawl, cache and HTTP hooks
//   - [buildinfo]: version information set at build time
//
// [github]: https://pkg.go.dev/github.com/matzehuels/orgraph/pkg/github
// [crawl]: https://pkg.go.dev/github.com/matzehuels/orgraph/pkg/crawl
// [scanner]: https://pkg.go.dev/github.com/matzehuels/orgraph/pkg/scanner
// [cache]: https://pkg.go.dev/github.com/matzehuels/orgraph/pkg/cache
// [manifest]: https://pkg.go.dev/github.com/matzehuels/orgraph/pkg/manifest
// [checkpoint]: https://pkg.go.dev/github.com/matzehuels/orgraph/pkg/checkpoint
// [graph]: https://pkg.go.dev/github.com/matzehuels/orgraph/pkg/graph
// [publish]: https://pkg.go.dev/github.com/matzehuels/orgraph/pkg/publish
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/orgraph/pkg/pipeline
// [pipeline.Runner]: https://pkg.go.dev/github.com/matzehuels/orgraph/pkg/pipeline#Runner
// [config.Config]: https://pkg.go.dev/github.com/matzehuels/orgraph/pkg/config#Config
// [errors]: https://pkg.go.dev/github.com/matzehuels/orgraph/pkg/errors
// [httputil]: https://pkg.go.dev/github.com/matzehuels/orgraph/pkg/httputil
// [observability]: https://pkg.go.dev/github.com/matzehuels/orgraph/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/orgraph/pkg/buildinfo
package pkg
