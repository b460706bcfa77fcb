// Package github provides a quota-aware client for the GitHub REST API.
//
// # Overview
//
// The crawler needs three things from GitHub: the organization's repository
// listing, directory listings, and file contents. [Client] provides them:
//
//	client, err := github.NewClient(github.Options{Org: "acme", Token: token})
//	repos, err := client.ListOrgRepos(ctx, 0)
//	file, err := client.FetchFile(ctx, "svc-a", "package.json")
//
// # Missing content
//
// A missing file or directory is an expected outcome while probing for
// manifests. [Client.FetchFile] and [Client.ListDir] return nil and no error
// on 404 instead of [ErrNotFound].
//
// # Throttling
//
// 429 responses, and 403 responses carrying rate limit headers, are retried
// through an [httputil.Policy]. The server's reset hint (Retry-After or
// X-RateLimit-Reset) lengthens the wait when it is later than the backoff.
// Once the retry budget is spent the call fails with QUOTA_EXHAUSTED.
//
// # Authentication
//
// A token is optional but an unauthenticated client is limited to 60 requests
// per hour, which is not enough to crawl more than a handful of repositories.
package github
